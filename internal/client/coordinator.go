package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned to every caller waiting on a refresh that failed.
// The session cannot be recovered without signing in again.
var ErrSessionExpired = errors.New("session expired")

// State is the client's view of its session.
type State int

const (
	Anonymous State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// RefreshFunc performs one refresh and returns the new access token's expiry.
type RefreshFunc func(ctx context.Context) (time.Time, error)

// Coordinator makes sure at most one refresh is in flight per client. Callers
// that arrive while a refresh runs wait for it and share its outcome.
type Coordinator struct {
	group singleflight.Group

	mu     sync.Mutex
	state  State
	expiry time.Time
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// State returns the current state and, when Authenticated, the access token expiry.
func (c *Coordinator) State() (State, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.expiry
}

// SetAuthenticated records a session obtained outside a refresh, e.g. by login.
func (c *Coordinator) SetAuthenticated(expiry time.Time) {
	c.mu.Lock()
	c.state, c.expiry = Authenticated, expiry
	c.mu.Unlock()
}

func (c *Coordinator) SetAnonymous() {
	c.mu.Lock()
	c.state, c.expiry = Anonymous, time.Time{}
	c.mu.Unlock()
}

// RunExclusive runs fn unless a run is already in progress, in which case it
// waits for that run. A failed run is reported to all of its waiters as
// ErrSessionExpired and is not retried. ctx only bounds this caller's wait;
// fn runs with a context detached from any single caller's cancellation.
func (c *Coordinator) RunExclusive(ctx context.Context, fn RefreshFunc) error {
	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		c.mu.Lock()
		c.state = Refreshing
		c.mu.Unlock()

		expiry, err := fn(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state, c.expiry = Anonymous, time.Time{}
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		c.state, c.expiry = Authenticated, expiry
		return expiry, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
