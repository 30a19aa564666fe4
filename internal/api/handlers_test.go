package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/printer"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

// testWorkerBest returns a plan with a single stop on truck 1, Monday morning.
func testWorkerBest(t *testing.T) *schedule.Solution {
	t.Helper()
	m := model.NewMatrix(2)
	m.Set(0, 1, model.Minute)
	m.Set(1, 0, model.Minute)
	ds, err := model.NewDataset([]model.Order{
		{ID: 17, Frequency: model.OncePerWeek, Volume: 100, ServiceTime: 10 * model.Minute, MatrixID: 1},
		{Frequency: model.Depot, MatrixID: 0},
	}, m)
	if err != nil {
		t.Fatal(err)
	}
	sol := schedule.New(ds)
	ref := schedule.RouteRef{Truck: schedule.TruckOne, Day: schedule.Monday, Shift: schedule.Morning}
	r := sol.Route(ref)
	before := sol.Day(ref.DayRef()).Cost()
	r.ApplyAddOrder(r.Head(), 0)
	sol.Flags.Add(0, ref.Day)
	sol.Unfilled.Pop()
	sol.Score += sol.Day(ref.DayRef()).Cost() - before - ds.Orders[0].Penalty()
	if err := sol.Check(); err != nil {
		t.Fatalf("fixture inconsistent: %v", err)
	}
	return sol
}

type fakePool struct {
	mu    sync.Mutex
	calls []string
	busy  bool
}

func (p *fakePool) record(c string) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
}

func (p *fakePool) Size() int { return 2 }
func (p *fakePool) TogglePause(i int) bool {
	p.record("pause-one")
	return !p.busy
}
func (p *fakePool) TogglePauseAll() { p.record("pause-all") }
func (p *fakePool) Stop(i int) bool {
	p.record("stop-one")
	return true
}
func (p *fakePool) StopAll() { p.record("stop-all") }

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"version"`) {
		t.Fatalf("health: got %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestRunViews(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	run, err := s.Store.CreateRun(ctx, model.Run{Dataset: "test", Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	sol := testWorkerBest(t)
	if err := s.Store.SaveIteration(ctx, model.IterationRecord{RunID: run.ID, Worker: 0, Iteration: 0, Score: sol.Score, Best: sol.Score, Improved: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Store.SaveSchedule(ctx, model.Schedule{RunID: run.ID, Score: sol.Score, Entries: printer.Records(sol)}); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	s.RunsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), run.ID) {
		t.Fatalf("runs list: %d %s", rr.Code, rr.Body.String())
	}

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}
	if rr := get("/v1/runs/" + run.ID); rr.Code != 200 {
		t.Fatalf("run: %d", rr.Code)
	}
	rr = get("/v1/runs/" + run.ID + "/iterations?worker=0")
	var page struct {
		Items []model.IterationRecord `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil || len(page.Items) != 1 {
		t.Fatalf("iterations: %d %s", rr.Code, rr.Body.String())
	}
	rr = get("/v1/runs/" + run.ID + "/schedule")
	var sc model.Schedule
	if err := json.Unmarshal(rr.Body.Bytes(), &sc); err != nil || len(sc.Entries) != 2 || sc.Entries[0].Order != 17 {
		t.Fatalf("schedule json: %d %s", rr.Code, rr.Body.String())
	}
	rr = get("/v1/runs/" + run.ID + "/schedule?format=text")
	if rr.Code != 200 || rr.Body.String() != "1; 1; 1; 17\n1; 1; 2; 0\n" {
		t.Fatalf("schedule text: %d %q", rr.Code, rr.Body.String())
	}
	if rr := get("/v1/runs/" + run.ID + "/metrics"); rr.Code != 200 {
		t.Fatalf("metrics: %d", rr.Code)
	}
	for _, path := range []string{"/v1/runs/missing", "/v1/runs/missing/schedule", "/v1/runs/" + run.ID + "/nope", "/v1/runs/"} {
		if rr := get(path); rr.Code != http.StatusNotFound {
			t.Fatalf("%s: got %d, want 404", path, rr.Code)
		}
	}
	if rr := get("/v1/runs/" + run.ID + "/iterations?worker=x"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad worker: %d", rr.Code)
	}
}

func TestControl(t *testing.T) {
	s := newTestServer(t)
	post := func(path string) int {
		rr := httptest.NewRecorder()
		s.ControlHandler(rr, httptest.NewRequest(http.MethodPost, path, nil))
		return rr.Code
	}
	if code := post("/v1/control/pause"); code != http.StatusServiceUnavailable {
		t.Fatalf("without pool: %d", code)
	}
	pool := &fakePool{}
	s.Pool = pool
	if code := post("/v1/control/pause"); code != http.StatusAccepted {
		t.Fatalf("pause all: %d", code)
	}
	if code := post("/v1/control/stop?worker=1"); code != http.StatusAccepted {
		t.Fatalf("stop one: %d", code)
	}
	if code := post("/v1/control/stop"); code != http.StatusAccepted {
		t.Fatalf("stop all: %d", code)
	}
	pool.busy = true
	if code := post("/v1/control/pause?worker=0"); code != http.StatusConflict {
		t.Fatalf("pending toggle: %d", code)
	}
	if code := post("/v1/control/pause?worker=2"); code != http.StatusBadRequest {
		t.Fatalf("out of range worker: %d", code)
	}
	if code := post("/v1/control/reboot"); code != http.StatusNotFound {
		t.Fatalf("unknown action: %d", code)
	}
	rr := httptest.NewRecorder()
	s.ControlHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/control/stop", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET control: %d", rr.Code)
	}
	want := []string{"pause-all", "stop-one", "stop-all", "pause-one"}
	if strings.Join(pool.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v", pool.calls)
	}
}

func TestStatusHandler(t *testing.T) {
	s := newTestServer(t)
	s.Relay = NewRelay("run-1", s.Broker, 100, 1)
	sol := testWorkerBest(t)
	s.Relay.Handle(opt.Status{Worker: 1, Score: 5, Iteration: 10, Trucks: sol.Snapshot()})
	s.Relay.Handle(opt.Status{Worker: 0, Score: 7, Iteration: 3})

	rr := httptest.NewRecorder()
	s.StatusHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/status?routes=true", nil))
	var body struct {
		RunID string        `json:"runId"`
		Items []StatusEvent `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v %s", err, rr.Body.String())
	}
	if body.RunID != "run-1" || len(body.Items) != 2 || body.Items[0].Worker != 0 || len(body.Items[1].Routes) != 1 {
		t.Fatalf("status = %+v", body)
	}
	rr = httptest.NewRecorder()
	s.StatusHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if strings.Contains(rr.Body.String(), `"routes"`) {
		t.Fatalf("routes should be omitted: %s", rr.Body.String())
	}
}

func TestRelayRateLimit(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("run")
	r := NewRelay("run", b, 0.001, 1)
	if !r.Handle(opt.Status{Worker: 0, Iteration: 1}) {
		t.Fatal("first snapshot must be forwarded")
	}
	if r.Handle(opt.Status{Worker: 0, Iteration: 2}) {
		t.Fatal("second snapshot should be rate limited")
	}
	if !r.Handle(opt.Status{Worker: 1, Iteration: 1}) {
		t.Fatal("other worker has its own budget")
	}
	if !r.Handle(opt.Status{Worker: 0, Iteration: 3, Paused: true}) {
		t.Fatal("pause transition must be forwarded")
	}
	if got := r.Latest()[0].Iteration; got != 3 {
		t.Fatalf("latest iteration = %d", got)
	}
	if len(ch) != 3 {
		t.Fatalf("broker received %d events", len(ch))
	}
}

func TestRelayRunStopsOnClose(t *testing.T) {
	r := NewRelay("run", nil, 10, 1)
	status := make(chan opt.Status, 1)
	status <- opt.Status{Worker: 4}
	close(status)
	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), status)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	if len(r.Latest()) != 1 {
		t.Fatal("snapshot not recorded")
	}
}

func TestStatusWS(t *testing.T) {
	s := newTestServer(t)
	s.Relay = NewRelay("run-ws", s.Broker, 1000, 10)
	s.Relay.Handle(opt.Status{Worker: 0, Iteration: 1})
	ts := httptest.NewServer(http.HandlerFunc(s.StatusWSHandler))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))

	var evt StatusEvent
	if err := c.ReadJSON(&evt); err != nil || evt.Iteration != 1 || evt.RunID != "run-ws" {
		t.Fatalf("replayed event %+v, %v", evt, err)
	}
	// the handler subscribes before replaying, so this publish is delivered
	s.Relay.Handle(opt.Status{Worker: 0, Iteration: 2})
	if err := c.ReadJSON(&evt); err != nil || evt.Iteration != 2 {
		t.Fatalf("live event %+v, %v", evt, err)
	}
}
