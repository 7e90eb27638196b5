package stratum

import (
	"log/slog"

	"github.com/aretw0/stratum/internal/platform"
	"github.com/aretw0/stratum/pkg/core"
)

// Version exposes the version of the library.
const Version = "0.1.0"

// --- Types ---

// Engine is the assembled note-synchronization engine.
type Engine = platform.Engine

// Note is the page annotation this engine stores and synchronizes.
type Note = core.Note

// Comment is a threaded reply on a shared note.
type Comment = core.Comment

// Identity is a signed-in account.
type Identity = core.Identity

// Viewer identifies one page frame receiving pushes.
type Viewer = core.Viewer

// --- Configuration ---

// Option defines a functional option for configuring the engine.
type Option = platform.Option

// WithLogger sets the logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithLocalStore injects a custom local store (e.g. a mock).
func WithLocalStore(s core.LocalStore) Option {
	return platform.WithLocalStore(s)
}

// WithRemoteStore injects the synchronized remote store.
func WithRemoteStore(s core.RemoteStore) Option {
	return platform.WithRemoteStore(s)
}

// WithIdentityProvider injects the sign-in backend. Required.
func WithIdentityProvider(p core.IdentityProvider) Option {
	return platform.WithIdentityProvider(p)
}

// WithBadge injects the badge surface for unread and orphaned counts.
func WithBadge(b core.Badge) Option {
	return platform.WithBadge(b)
}

// WithTabs injects the tab URL resolver.
func WithTabs(t core.Tabs) Option {
	return platform.WithTabs(t)
}

// WithSender overrides where subscription pushes are delivered.
func WithSender(s core.Sender) Option {
	return platform.WithSender(s)
}

// WithDataDir sets the directory for the local store.
func WithDataDir(dir string) Option {
	return platform.WithDataDir(dir)
}

// WithInMemory keeps the local store in memory (useful for testing).
func WithInMemory(inMemory bool) Option {
	return platform.WithInMemory(inMemory)
}

// WithSyncWrites makes every local write fsync before returning.
func WithSyncWrites(sync bool) Option {
	return platform.WithSyncWrites(sync)
}

// WithIgnorePatterns sets host/path globs for URLs where note capture is
// disabled.
func WithIgnorePatterns(patterns []string) Option {
	return platform.WithIgnorePatterns(patterns)
}

// --- Factory ---

// New assembles an Engine.
func New(opts ...Option) (*Engine, error) {
	return platform.New(opts...)
}
