// Package stratum is the Composition Root for the Stratum engine.
//
// It connects the note domain (repository, migration, subscriptions,
// shared-note tracking, request routing) with the infrastructure adapters
// (local badger store, websocket sync client, viewer gateway).
//
// Philosophy:
//
// Stratum keeps page annotations in layers. The bottom layer is a local
// durable store that always works, even signed out and offline. The top
// layer is an optional synchronized remote that adds ownership, sharing,
// comment threads and live updates. Operations try the top layer first and
// fall back to the bottom one on transient failure, so a flaky backend
// degrades the experience instead of breaking it.
//
// Features:
//
//   - **Layered storage**: remote-first with transparent local fallback.
//   - **One-shot migration**: local notes are promoted to the account on a
//     fresh sign-in, at most once per session.
//   - **Live queries**: per-viewer note and comment subscriptions with
//     idempotent re-subscribe semantics.
//   - **Shared-note tracking**: unread counts surfaced through a badge.
//   - **Closed request protocol**: every viewer action is dispatched
//     exhaustively; unknown actions get a structured error.
//
// Usage:
//
//	// Assemble the engine with functional options
//	engine, err := stratum.New(
//		stratum.WithDataDir("/var/lib/stratum"),
//		stratum.WithIdentityProvider(provider),
//		stratum.WithLogger(logger),
//	)
//
//	// Serve viewers over websockets
//	http.Handle("/ws", engine.Hub())
package stratum
