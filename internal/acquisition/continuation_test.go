package acquisition

import (
	"context"
	"testing"
)

func TestContinuationDispatchesByKind(t *testing.T) {
	cases := []struct {
		action PendingAction
		op     string
	}{
		{PendingAction{Kind: ActionShowOptions, ModpackID: "m1"}, "show_options"},
		{PendingAction{Kind: ActionShowCreate, ModpackID: "m1"}, "open_create"},
		{PendingAction{Kind: ActionUpdate, ModpackID: "m1", InstanceID: "i1"}, "open_update"},
		{PendingAction{Kind: ActionUpdate, ModpackID: "m1", InstanceID: "i1", Params: map[string]string{"version": "1.2"}}, "update"},
		{PendingAction{Kind: ActionCreate, ModpackID: "m1", Params: map[string]string{"name": "My pack"}}, "create"},
	}
	for _, tc := range cases {
		actions := &recordingActions{}
		c := NewContinuation(actions)
		c.Defer(tc.action)
		ran, err := c.Resolve(context.Background())
		if err != nil || !ran {
			t.Fatalf("%s: Resolve = %v, %v", tc.op, ran, err)
		}
		if len(actions.calls) != 1 || actions.calls[0].op != tc.op {
			t.Fatalf("expected %s, got %+v", tc.op, actions.calls)
		}
		if actions.calls[0].modpackID != "m1" {
			t.Fatalf("%s: wrong modpack %q", tc.op, actions.calls[0].modpackID)
		}
	}
}

func TestContinuationResolvesOnce(t *testing.T) {
	actions := &recordingActions{}
	c := NewContinuation(actions)
	c.Defer(PendingAction{Kind: ActionShowOptions, ModpackID: "m1"})

	if ran, _ := c.Resolve(context.Background()); !ran {
		t.Fatal("expected first resolve to run")
	}
	if ran, _ := c.Resolve(context.Background()); ran {
		t.Fatal("second resolve without a new action must be a no-op")
	}
	if actions.count() != 1 {
		t.Fatalf("expected 1 call, got %d", actions.count())
	}
}

func TestContinuationDeferReplaces(t *testing.T) {
	actions := &recordingActions{}
	c := NewContinuation(actions)
	c.Defer(PendingAction{Kind: ActionShowOptions, ModpackID: "old"})
	c.Defer(PendingAction{Kind: ActionShowCreate, ModpackID: "new"})

	c.Resolve(context.Background())
	if actions.count() != 1 || actions.calls[0].modpackID != "new" {
		t.Fatalf("expected only the latest action, got %+v", actions.calls)
	}
}

func TestContinuationUnknownKind(t *testing.T) {
	c := NewContinuation(&recordingActions{})
	c.Defer(PendingAction{Kind: "launch"})
	if _, err := c.Resolve(context.Background()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, ok := c.Pending(); ok {
		t.Fatal("action must be cleared even when dispatch fails")
	}
}
