// Package main runs a demo WebSocket client that follows planner status.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type statusMessage struct {
	Type      string `json:"type"`
	RunID     string `json:"runId"`
	Worker    int    `json:"worker"`
	Score     int64  `json:"score"`
	Best      int64  `json:"best"`
	Iteration int64  `json:"iteration"`
	Round     int    `json:"round"`
	Paused    bool   `json:"paused"`
}

func main() {
	runID := flag.String("run", "", "run id, the active run when empty")
	pause := flag.Duration("pause-after", 0, "toggle pause on every worker after this long")
	wait := flag.Duration("wait", 10*time.Second, "how long to follow the stream")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Current snapshot
	resp, err := http.Get(base + "/v1/status")
	if err != nil {
		log.Fatal(err)
	}
	var snap struct {
		RunID string            `json:"runId"`
		Items []json.RawMessage `json:"items"`
	}
	err = json.NewDecoder(resp.Body).Decode(&snap)
	_ = resp.Body.Close()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("run %s, %d workers reporting", snap.RunID, len(snap.Items))

	// Connect WS
	q := url.Values{}
	if *runID != "" {
		q.Set("runId", *runID)
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/status/ws", RawQuery: q.Encode()}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m statusMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- worker %d round %d iter %d score %.1fmin best %.1fmin paused=%v",
				m.Worker, m.Round, m.Iteration, float64(m.Score)/6000, float64(m.Best)/6000, m.Paused)
		}
	}()

	if *pause > 0 {
		time.Sleep(*pause)
		req, _ := http.NewRequest(http.MethodPost, base+"/v1/control/pause", nil)
		if tok := os.Getenv("PLANNER_TOKEN"); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Printf("pause: %v", err)
		} else {
			_ = resp.Body.Close()
			log.Printf("pause -> %s", resp.Status)
		}
	}

	select {
	case <-time.After(*wait):
	case <-done:
	}
}
