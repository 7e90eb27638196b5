package platform_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aretw0/stratum/internal/platform"
	"github.com/aretw0/stratum/pkg/adapters/ident"
	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/router"
)

func newTestEngine(t *testing.T) *platform.Engine {
	t.Helper()
	engine, err := platform.New(
		platform.WithInMemory(true),
		platform.WithIdentityProvider(ident.NewStatic(core.Identity{ID: "u-1", Email: "gopher@example.com"})),
		platform.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestNewRequiresIdentityProvider(t *testing.T) {
	_, err := platform.New(platform.WithInMemory(true))
	if !errors.Is(err, core.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewRequiresDataDirForPersistentStore(t *testing.T) {
	_, err := platform.New(
		platform.WithIdentityProvider(ident.NewStatic(core.Identity{ID: "u-1"})),
	)
	if !errors.Is(err, core.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestEngineEndToEndLocalFlow(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	v := core.Viewer{TabID: 1}

	resp := engine.Router().Dispatch(ctx, v, router.Request{
		Action: router.ActionSaveNote,
		Note:   &core.Note{URL: "https://a.test/p", Content: "hi"},
	})
	if !resp.Success {
		t.Fatalf("saveNote failed: %s", resp.Error)
	}
	if resp.Note.OwnerID != core.LocalOwnerID {
		t.Errorf("signed-out save must use the local owner, got %q", resp.Note.OwnerID)
	}

	resp = engine.Router().Dispatch(ctx, v, router.Request{
		Action: router.ActionGetNotes,
		URL:    "https://a.test/p",
	})
	if !resp.Success || len(resp.Notes) != 1 {
		t.Errorf("unexpected getNotes response: %+v", resp)
	}

	// Without a remote store, subscriptions answer with the configuration
	// error even when signed in.
	engine.Router().Dispatch(ctx, v, router.Request{Action: router.ActionLogin})
	resp = engine.Router().Dispatch(ctx, v, router.Request{
		Action: router.ActionSubscribeToNotes,
		URL:    "https://a.test/p",
	})
	if resp.Success {
		t.Error("subscribe must fail without a remote store")
	}
}

func TestEngineIgnorePatterns(t *testing.T) {
	engine, err := platform.New(
		platform.WithInMemory(true),
		platform.WithIdentityProvider(ident.NewStatic(core.Identity{ID: "u-1"})),
		platform.WithIgnorePatterns([]string{"bank.test/**"}),
		platform.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Close()

	resp := engine.Router().Dispatch(context.Background(), core.Viewer{TabID: 1}, router.Request{
		Action: router.ActionGetNotes,
		URL:    "https://bank.test/accounts",
	})
	if !resp.Success || len(resp.Notes) != 0 {
		t.Errorf("ignored site must yield an empty success, got %+v", resp)
	}
}

func TestEngineExposesComponents(t *testing.T) {
	engine := newTestEngine(t)
	if engine.Repository() == nil || engine.Migrator() == nil || engine.Subscriptions() == nil ||
		engine.Tracker() == nil || engine.Router() == nil || engine.Hub() == nil || engine.Registry() == nil {
		t.Error("all components must be wired")
	}
	if engine.Registry().ComponentType() != "subscription-registry" {
		t.Errorf("unexpected registry component type")
	}
}
