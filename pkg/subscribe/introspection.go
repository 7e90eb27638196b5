package subscribe

import (
	"github.com/aretw0/introspection"
)

// RegistryState exposes internal state for observability.
type RegistryState struct {
	NoteSubscriptions    int  `json:"note_subscriptions"`
	CommentSubscriptions int  `json:"comment_subscriptions"`
	GlobalActive         bool `json:"global_active"`
}

// State implements introspection.Introspectable.
func (r *Registry) State() any {
	notes, comments, global := r.counts()
	return RegistryState{
		NoteSubscriptions:    notes,
		CommentSubscriptions: comments,
		GlobalActive:         global,
	}
}

// ComponentType implements introspection.Component.
func (r *Registry) ComponentType() string {
	return "subscription-registry"
}

var _ introspection.Introspectable = (*Registry)(nil)
var _ introspection.Component = (*Registry)(nil)
