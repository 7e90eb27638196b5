// Package platform assembles the engine: it opens the local store, wires
// every component to its collaborators, and hands back one Engine value
// the public facade and the daemon both build on.
package platform

import (
	"fmt"
	"log/slog"

	badgerstore "github.com/aretw0/stratum/pkg/adapters/badger"
	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/gateway"
	"github.com/aretw0/stratum/pkg/notes"
	"github.com/aretw0/stratum/pkg/router"
	"github.com/aretw0/stratum/pkg/shared"
	"github.com/aretw0/stratum/pkg/subscribe"
)

// Engine is the assembled note-synchronization engine.
type Engine struct {
	logger *slog.Logger

	local    core.LocalStore
	repo     *notes.Repository
	migrator *notes.Migrator
	registry *subscribe.Registry
	subs     *subscribe.Manager
	tracker  *shared.Tracker
	router   *router.Router
	hub      *gateway.Hub

	ownsLocal bool
}

// New builds the engine. At minimum an identity provider must be injected;
// everything else has a default or degrades gracefully when absent.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.identity == nil {
		return nil, fmt.Errorf("%w: an identity provider is required", core.ErrNotConfigured)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	local, ownsLocal, err := openLocal(o, logger)
	if err != nil {
		return nil, err
	}

	repo := notes.NewRepository(local, o.remote, logger)
	if len(o.ignore) > 0 {
		repo.SetIgnorePatterns(o.ignore)
	}

	relay := &relaySender{}
	registry := subscribe.NewRegistry()
	subs := subscribe.NewManager(registry, o.remote, o.identity, relay, logger)

	migrator := notes.NewMigrator(local, o.remote, logger)
	tracker := shared.NewTracker(local, o.remote, o.identity, o.badge, registry, logger)
	rt := router.New(repo, migrator, subs, tracker, o.identity, o.tabs, o.badge, logger)
	hub := gateway.NewHub(rt, subs, logger)

	if o.sender != nil {
		relay.bind(o.sender)
	} else {
		relay.bind(hub)
	}

	return &Engine{
		logger:    logger,
		local:     local,
		repo:      repo,
		migrator:  migrator,
		registry:  registry,
		subs:      subs,
		tracker:   tracker,
		router:    rt,
		hub:       hub,
		ownsLocal: ownsLocal,
	}, nil
}

func openLocal(o *options, logger *slog.Logger) (core.LocalStore, bool, error) {
	if o.local != nil {
		return o.local, false, nil
	}
	if o.inMemory {
		s, err := badgerstore.OpenInMemory()
		if err != nil {
			return nil, false, fmt.Errorf("open in-memory store: %w", err)
		}
		return s, true, nil
	}
	if o.dataDir == "" {
		return nil, false, fmt.Errorf("%w: a data directory is required", core.ErrNotConfigured)
	}
	s, err := badgerstore.Open(badgerstore.Config{
		Path:       o.dataDir,
		SyncWrites: o.syncWrites,
		Logger:     logger,
	})
	if err != nil {
		return nil, false, fmt.Errorf("open local store at %s: %w", o.dataDir, err)
	}
	return s, true, nil
}

// Repository exposes the note repository.
func (e *Engine) Repository() *notes.Repository { return e.repo }

// Migrator exposes the local-to-remote migration coordinator.
func (e *Engine) Migrator() *notes.Migrator { return e.migrator }

// Subscriptions exposes the subscription manager.
func (e *Engine) Subscriptions() *subscribe.Manager { return e.subs }

// Registry exposes the live subscription registry, mainly for inspection.
func (e *Engine) Registry() *subscribe.Registry { return e.registry }

// Tracker exposes the shared-notes unread tracker.
func (e *Engine) Tracker() *shared.Tracker { return e.tracker }

// Router exposes the request dispatcher.
func (e *Engine) Router() *router.Router { return e.router }

// Hub exposes the viewer-facing websocket handler.
func (e *Engine) Hub() *gateway.Hub { return e.hub }

// Close releases the local store if the engine opened it.
func (e *Engine) Close() error {
	if e.ownsLocal {
		return e.local.Close()
	}
	return nil
}
