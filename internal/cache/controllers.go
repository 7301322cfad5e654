package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/session"
	"fintrack/internal/table"
)

// ControllerFactory builds a fresh table controller for a user.
type ControllerFactory func(userID string) *table.Controller

// Controllers keeps one table controller per signed-in user. Idle
// controllers expire; evicted controllers are closed so their undo timers
// stop.
type Controllers struct {
	lru     *LRUCache[*table.Controller]
	factory ControllerFactory
	loads   singleflight.Group
}

func NewControllers(maxUsers int, idle time.Duration, factory ControllerFactory) *Controllers {
	c := &Controllers{
		lru:     NewLRUCache[*table.Controller](maxUsers, idle),
		factory: factory,
	}
	c.lru.OnEvict(func(userID string, ctrl *table.Controller) {
		ctrl.Close()
		slog.Debug("Table controller closed", "user_id", userID)
	})
	return c
}

// Get returns the user's controller, creating and loading it on first use.
// Concurrent first requests for one user share a single load; other users
// are never blocked by it. A caller whose ctx ends stops waiting, while the
// shared load carries on for the rest.
func (c *Controllers) Get(ctx context.Context, userID string) (*table.Controller, error) {
	if ctrl, ok := c.lru.Get(userID); ok {
		return ctrl, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(userID, func() (any, error) {
		if ctrl, ok := c.lru.Get(userID); ok {
			return ctrl, nil
		}
		ctrl := c.factory(userID)
		if err := ctrl.Refresh(loadCtx); err != nil {
			ctrl.Close()
			return nil, err
		}
		c.lru.Set(userID, ctrl)
		return ctrl, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*table.Controller), nil
	}
}

// Peek returns the controller only if one is live.
func (c *Controllers) Peek(userID string) (*table.Controller, bool) {
	return c.lru.Get(userID)
}

// Drop closes and forgets the user's controller.
func (c *Controllers) Drop(userID string) {
	c.lru.Delete(userID)
}

// Watch drops a user's controller when they sign out. The returned func
// unsubscribes.
func (c *Controllers) Watch(m *session.Manager) func() {
	return m.Subscribe(func(ev session.Event) {
		if ev.Kind == session.SignedOut {
			c.Drop(ev.UserID)
		}
	})
}

func (c *Controllers) CleanExpired() int { return c.lru.CleanExpired() }

func (c *Controllers) Size() int { return c.lru.Size() }

// Close closes every live controller.
func (c *Controllers) Close() { c.lru.Purge() }
