package installer

import (
	"context"

	"moduleinstaller/logger"
)

// Runner runs the install workflow once.
type Runner interface {
	Run(ctx context.Context) Result
}

// Hook is the application-ready entry point. It runs the workflow only
// while the persisted flag is unset.
type Hook struct {
	store  FlagStore
	key    string
	runner Runner
	events *logger.Emitter
}

// NewHook creates a hook gated on key in store.
func NewHook(store FlagStore, key string, runner Runner, events *logger.Emitter) *Hook {
	return &Hook{
		store:  store,
		key:    key,
		runner: runner,
		events: events.Component("installer"),
	}
}

// Ready is called once when the application has started. It returns the run
// result, or nil when the flag shows the workflow already completed.
func (h *Hook) Ready(ctx context.Context) *Result {
	done, err := h.store.Get(h.key)
	if err != nil {
		h.events.Warning("state.read_failed", "Failed to read install flag, checking catalog", logger.Fields{
			"key":   h.key,
			"error": err.Error(),
		})
		done = false
	}

	if done {
		h.events.Info("install.skipped", "Install flag already set, nothing to do", logger.Fields{"key": h.key})
		return nil
	}

	result := h.runner.Run(ctx)
	return &result
}
