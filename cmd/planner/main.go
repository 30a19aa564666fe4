package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bjorn1004/route-finder/internal/api"
	"github.com/bjorn1004/route-finder/internal/auth"
	"github.com/bjorn1004/route-finder/internal/buildinfo"
	"github.com/bjorn1004/route-finder/internal/config"
	"github.com/bjorn1004/route-finder/internal/dataset"
	"github.com/bjorn1004/route-finder/internal/metrics"
	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/printer"
	"github.com/bjorn1004/route-finder/internal/store"
	"github.com/bjorn1004/route-finder/internal/webhooks"
)

func main() {
	configPath := flag.String("config", os.Getenv("PLANNER_CONFIG"), "path to a YAML config file")
	tokenFor := flag.String("token", "", "print an operator token for this subject and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("reading .env failed", "err", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(log)

	if *tokenFor != "" {
		if cfg.Auth.Secret == "" {
			log.Error("auth secret not configured")
			os.Exit(1)
		}
		v := verifier(cfg)
		tok, err := v.Sign(*tokenFor, auth.RoleOperator, 24*time.Hour)
		if err != nil {
			log.Error("sign token", "err", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	if err := run(cfg, log); err != nil {
		log.Error("planner failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := dataset.Files{Orders: cfg.Data.Orders, Matrix: cfg.Data.Matrix}
	ds, err := src.Load(ctx)
	if err != nil {
		return err
	}
	log.Info("dataset loaded", "source", src.Name(), "orders", ds.Depot(), "penalty", ds.TotalPenalty())

	srv, err := api.NewServer(ctx, api.Options{
		DatabaseURL: cfg.DatabaseURL,
		Migrate:     cfg.DBMigrate,
		RedisURL:    cfg.RedisURL,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	current, err := srv.Store.CreateRun(ctx, model.Run{
		ID:      uuid.New().String(),
		Dataset: src.Name(),
		Workers: cfg.Workers,
		Seed:    seed,
	})
	if err != nil {
		return err
	}
	log.Info("run created", "run", current.ID, "workers", current.Workers, "seed", current.Seed, "version", buildinfo.Version)

	sinks := opt.MultiSink{store.Recorder{Store: srv.Store}}
	if cfg.Output.Dir != "" {
		sinks = append(sinks, &printer.Dir{Path: cfg.Output.Dir, PerWorker: cfg.Output.PerWorker})
	}
	var hooks *webhooks.Publisher
	if cfg.Webhook.URL != "" {
		hooks = webhooks.NewPublisher(webhooks.Config{
			URL:         cfg.Webhook.URL,
			Secret:      cfg.Webhook.Secret,
			MaxAttempts: cfg.Webhook.MaxAttempts,
			Timeout:     cfg.Webhook.Timeout,
		}, log)
		hooks.Start(context.WithoutCancel(ctx))
		defer hooks.Close()
		sinks = append(sinks, hooks)
	}

	metrics.RegisterDefault()
	pool := opt.NewPool(ds, opt.PoolConfig{
		RunID:        current.ID,
		Workers:      cfg.Workers,
		Seed:         seed,
		Params:       cfg.Params(),
		Logger:       log,
		Sink:         sinks,
		StatusBuffer: cfg.Status.Buffer,
	})
	srv.Pool = pool
	srv.Relay = api.NewRelay(current.ID, srv.Broker, cfg.Status.Rate, cfg.Status.Burst)

	var httpSrv *http.Server
	if cfg.HTTP.Addr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           logMiddleware(log, recoverer(log, routes(srv, verifier(cfg)))),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("observer listening", "addr", cfg.HTTP.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", "err", err)
			}
		}()
	}

	pool.Start(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		srv.Relay.Run(context.WithoutCancel(ctx), pool.Status())
	}()

	werr := pool.Wait()
	<-relayDone

	status := model.RunFinished
	switch {
	case werr != nil:
		status = model.RunFailed
	case pool.Stopped():
		status = model.RunStopped
	}
	var bestScore model.Time
	if best, id := pool.Best(); best != nil {
		bestScore = best.Score
		log.Info("best plan", "worker", id, "score", best.Score, "minutes", best.Score/model.Minute, "penalty", best.Penalty())
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Store.FinishRun(fctx, current.ID, status, bestScore, time.Now().UTC()); err != nil {
		log.Warn("finish run failed", "run", current.ID, "err", err)
	}
	log.Info("run finished", "run", current.ID, "status", status)
	if hooks != nil {
		hooks.Emit(webhooks.Event{Type: webhooks.EventRunFinished, RunID: current.ID, Data: map[string]any{
			"status": status,
			"best":   bestScore,
		}})
	}

	if httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Warn("server shutdown", "err", err)
		}
	}
	return werr
}

func verifier(cfg *config.Config) *auth.Verifier {
	if cfg.Auth.Secret == "" {
		return nil
	}
	return &auth.Verifier{Secret: []byte(cfg.Auth.Secret), Issuer: cfg.Auth.Issuer, Leeway: 30 * time.Second}
}

func routes(s *api.Server, v *auth.Verifier) http.Handler {
	mux := http.NewServeMux()

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /iterations, /schedule, /metrics

	// Live search
	mux.HandleFunc("/v1/status", s.StatusHandler)
	mux.HandleFunc("/v1/status/ws", s.StatusWSHandler)
	mux.Handle("/v1/control/", v.Require(auth.RoleOperator, http.HandlerFunc(s.ControlHandler)))

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := routeLabel(r.URL.Path)
		code := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())
		log.Debug("http request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", dur)
	})
}

func recoverer(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("handler panic", "path", r.URL.Path, "err", err, "stack", string(debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// routeLabel keeps run ids out of metric labels.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "runs" {
		parts[2] = "{id}"
	}
	return "/" + strings.Join(parts, "/")
}
