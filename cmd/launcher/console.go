package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"modpackBack/internal/acquisition"
)

type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *consoleNotifier) Notify(level acquisition.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "[%s] %s\n", level, message)
}

// consoleActions reports resumed launcher actions instead of running them.
type consoleActions struct {
	mu  sync.Mutex
	out io.Writer
}

func (a *consoleActions) print(format string, args ...interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := fmt.Fprintf(a.out, "-> "+format+"\n", args...)
	return err
}

func (a *consoleActions) ShowInstallOptions(ctx context.Context, modpackID string) error {
	return a.print("showing install options for %s", modpackID)
}

func (a *consoleActions) OpenUpdate(ctx context.Context, modpackID, instanceID string) error {
	return a.print("opening update of instance %s to %s", instanceID, modpackID)
}

func (a *consoleActions) OpenCreate(ctx context.Context, modpackID string) error {
	return a.print("opening instance creation for %s", modpackID)
}

func (a *consoleActions) Create(ctx context.Context, modpackID string, params map[string]string) error {
	return a.print("creating instance from %s%s", modpackID, formatParams(params))
}

func (a *consoleActions) Update(ctx context.Context, modpackID, instanceID string, params map[string]string) error {
	return a.print("updating instance %s to %s%s", instanceID, modpackID, formatParams(params))
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
