package platform

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/aretw0/stratum/pkg/core"
)

// relaySender breaks the construction cycle between the subscription
// manager (which needs a sender) and the gateway hub (which needs the
// manager). It forwards to whatever sender is bound, and reports the
// viewer as gone until one is.
type relaySender struct {
	target atomic.Pointer[core.Sender]
}

func (r *relaySender) bind(s core.Sender) {
	r.target.Store(&s)
}

func (r *relaySender) Send(ctx context.Context, v core.Viewer, msg core.PushMessage) error {
	s := r.target.Load()
	if s == nil {
		return errors.New("no push channel bound")
	}
	return (*s).Send(ctx, v, msg)
}

var _ core.Sender = (*relaySender)(nil)
