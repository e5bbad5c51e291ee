// Package registry tracks the live notification connections held by this process.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"

	"github.com/google/uuid"
)

const defaultWriteTimeout = 5 * time.Second

// Conn is one open push channel.
type Conn interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Registry maps each user to the set of connections they hold. A user may have any
// number of connections (one per device or tab).
type Registry struct {
	mu           sync.RWMutex
	conns        map[uuid.UUID]map[Conn]struct{}
	writeTimeout time.Duration
	logger       logger.Logger
}

func New(writeTimeout time.Duration, log logger.Logger) *Registry {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Registry{
		conns:        make(map[uuid.UUID]map[Conn]struct{}),
		writeTimeout: writeTimeout,
		logger:       log.WithFields(map[string]interface{}{"component": "registry"}),
	}
}

func (r *Registry) Register(c Conn, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	if _, dup := set[c]; dup {
		return
	}
	set[c] = struct{}{}
	metrics.LiveConnections.Inc()
}

// Unregister removes c. The user's entry is dropped once their last connection goes.
func (r *Registry) Unregister(c Conn, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	if _, present := set[c]; !present {
		return
	}
	delete(set, c)
	metrics.LiveConnections.Dec()
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// PushToUser writes payload to every connection userID currently holds and returns
// how many writes succeeded. Failures are logged and never returned.
func (r *Registry) PushToUser(ctx context.Context, userID uuid.UUID, payload []byte) int {
	return r.deliver(ctx, r.snapshot(&userID), payload)
}

// Broadcast writes payload to every registered connection.
func (r *Registry) Broadcast(ctx context.Context, payload []byte) int {
	return r.deliver(ctx, r.snapshot(nil), payload)
}

// Users lists the users holding at least one connection.
func (r *Registry) Users() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(r.conns))
	for u := range r.conns {
		users = append(users, u)
	}
	return users
}

// Connections reports how many connections userID holds.
func (r *Registry) Connections(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Close closes and forgets every connection.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.conns
	r.conns = make(map[uuid.UUID]map[Conn]struct{})
	r.mu.Unlock()

	for _, set := range all {
		for c := range set {
			_ = c.Close()
			metrics.LiveConnections.Dec()
		}
	}
}

type target struct {
	userID uuid.UUID
	conn   Conn
}

// snapshot copies the targets under the read lock so writes happen unlocked.
func (r *Registry) snapshot(userID *uuid.UUID) []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []target
	for u, set := range r.conns {
		if userID != nil && u != *userID {
			continue
		}
		for c := range set {
			out = append(out, target{userID: u, conn: c})
		}
	}
	return out
}

func (r *Registry) deliver(ctx context.Context, targets []target, payload []byte) int {
	if len(targets) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
			defer cancel()

			if err := t.conn.Send(sendCtx, payload); err != nil {
				metrics.PushDeliveries.WithLabelValues("failed").Inc()
				r.logger.Warn("Push to connection failed", map[string]interface{}{
					"userId": t.userID.String(),
					"error":  err.Error(),
				})
				return
			}
			metrics.PushDeliveries.WithLabelValues("delivered").Inc()
			delivered.Add(1)
		}(t)
	}
	wg.Wait()
	return int(delivered.Load())
}
