package api

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bjorn1004/route-finder/internal/store"
)

// Controller is the part of the worker pool the HTTP surface may drive.
type Controller interface {
	Size() int
	TogglePause(i int) bool
	TogglePauseAll()
	Stop(i int) bool
	StopAll()
}

type Server struct {
	Store  store.Store
	Broker EventBroker
	Pool   Controller
	Relay  *Relay
	Log    *slog.Logger
}

type Options struct {
	DatabaseURL string
	Migrate     bool
	RedisURL    string
	Logger      *slog.Logger
}

// NewServer creates a Server. If DatabaseURL is empty, uses in-memory store;
// if RedisURL is empty or unreachable, uses the in-process broker.
func NewServer(ctx context.Context, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	var s store.Store
	if strings.TrimSpace(opts.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if opts.Migrate {
			if err := sp.Migrate(ctx); err != nil {
				sp.Close()
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker
	if opts.RedisURL != "" {
		if rb, err := NewRedisBroker(opts.RedisURL, log); err == nil {
			broker = rb
		} else {
			log.Warn("redis broker unavailable, using in-process broker", "err", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	return &Server{Store: s, Broker: broker, Log: log}, nil
}

// Close releases the store and broker.
func (s *Server) Close() error {
	berr := s.Broker.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return berr
}
