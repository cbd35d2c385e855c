package acquisition

import (
	"context"
	"fmt"
	"sync"
)

// Actions are the launcher operations a deferred action can resume.
type Actions interface {
	ShowInstallOptions(ctx context.Context, modpackID string) error
	OpenUpdate(ctx context.Context, modpackID, instanceID string) error
	OpenCreate(ctx context.Context, modpackID string) error
	Create(ctx context.Context, modpackID string, params map[string]string) error
	Update(ctx context.Context, modpackID, instanceID string, params map[string]string) error
}

// Continuation is a queue of depth one holding the action to replay once access is confirmed.
type Continuation struct {
	actions Actions

	mu      sync.Mutex
	pending *PendingAction
}

// NewContinuation constructs a Continuation dispatching to actions.
func NewContinuation(actions Actions) *Continuation {
	return &Continuation{actions: actions}
}

// Defer captures action, replacing any previously captured one.
func (c *Continuation) Defer(action PendingAction) {
	c.mu.Lock()
	c.pending = &action
	c.mu.Unlock()
}

// Pending returns the captured action, if any.
func (c *Continuation) Pending() (PendingAction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingAction{}, false
	}
	return *c.pending, true
}

// Clear drops the captured action without running it.
func (c *Continuation) Clear() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Resolve runs the captured action and clears it. Without a captured action it is a no-op
// and reports false.
func (c *Continuation) Resolve(ctx context.Context) (bool, error) {
	c.mu.Lock()
	action := c.pending
	c.pending = nil
	c.mu.Unlock()

	if action == nil || c.actions == nil {
		return false, nil
	}
	return true, c.dispatch(ctx, *action)
}

func (c *Continuation) dispatch(ctx context.Context, a PendingAction) error {
	switch a.Kind {
	case ActionShowOptions:
		return c.actions.ShowInstallOptions(ctx, a.ModpackID)
	case ActionShowCreate:
		return c.actions.OpenCreate(ctx, a.ModpackID)
	case ActionUpdate:
		if len(a.Params) == 0 {
			return c.actions.OpenUpdate(ctx, a.ModpackID, a.InstanceID)
		}
		return c.actions.Update(ctx, a.ModpackID, a.InstanceID, a.Params)
	case ActionCreate:
		return c.actions.Create(ctx, a.ModpackID, a.Params)
	}
	return fmt.Errorf("unknown pending action %q", a.Kind)
}
