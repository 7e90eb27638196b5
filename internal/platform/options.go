package platform

import (
	"log/slog"

	"github.com/aretw0/stratum/pkg/core"
)

// options holds the internal configuration for the engine.
type options struct {
	logger     *slog.Logger
	local      core.LocalStore
	remote     core.RemoteStore
	identity   core.IdentityProvider
	badge      core.Badge
	tabs       core.Tabs
	sender     core.Sender
	dataDir    string
	inMemory   bool
	syncWrites bool
	ignore     []string
}

// Option defines a functional option for configuring the engine.
type Option func(*options)

func defaultOptions() *options {
	return &options{}
}

// WithLogger sets the logger for the engine and everything it assembles.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLocalStore injects a custom local store (e.g. a mock). If provided,
// the default badger store is skipped and WithDataDir is ignored.
func WithLocalStore(s core.LocalStore) Option {
	return func(o *options) {
		o.local = s
	}
}

// WithRemoteStore injects the synchronized remote store. Without one the
// engine runs in local-only mode: every operation lands in the local store
// and subscriptions answer with a configuration error.
func WithRemoteStore(s core.RemoteStore) Option {
	return func(o *options) {
		o.remote = s
	}
}

// WithIdentityProvider injects the sign-in backend. Required.
func WithIdentityProvider(p core.IdentityProvider) Option {
	return func(o *options) {
		o.identity = p
	}
}

// WithBadge injects the badge surface used for unread and orphaned counts.
// Optional; without it badge updates are skipped.
func WithBadge(b core.Badge) Option {
	return func(o *options) {
		o.badge = b
	}
}

// WithTabs injects the tab URL resolver backing the getTabUrl action.
func WithTabs(t core.Tabs) Option {
	return func(o *options) {
		o.tabs = t
	}
}

// WithSender overrides where pushes go. By default they go through the
// engine's own websocket hub; tests inject a recorder here.
func WithSender(s core.Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// WithDataDir sets the directory for the local badger store.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithInMemory keeps the local store in memory (useful for testing).
func WithInMemory(inMemory bool) Option {
	return func(o *options) {
		o.inMemory = inMemory
	}
}

// WithSyncWrites makes every local write fsync before returning.
func WithSyncWrites(sync bool) Option {
	return func(o *options) {
		o.syncWrites = sync
	}
}

// WithIgnorePatterns sets the host/path glob patterns for URLs the note
// repository should treat as having no notes.
func WithIgnorePatterns(patterns []string) Option {
	return func(o *options) {
		o.ignore = patterns
	}
}
