// Package push delivers live "something changed" signals to users' connections,
// either straight into the local registry or relayed through Redis so that every
// API process delivers to the connections it holds.
package push

import (
	"context"

	"lending-engine/internal/registry"

	"github.com/google/uuid"
)

// Pusher sends a payload to every live connection of a user. Delivery is best
// effort and never reports failure to the caller.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, payload []byte)
}

// Local pushes into an in-process registry.
type Local struct {
	registry *registry.Registry
}

func NewLocal(reg *registry.Registry) *Local {
	return &Local{registry: reg}
}

func (l *Local) Push(ctx context.Context, userID uuid.UUID, payload []byte) {
	l.registry.PushToUser(ctx, userID, payload)
}
