package workspace

import (
	"context"
	"time"

	"codepad/internal/util"
)

// Autosaver periodically queues a save for every dirty workspace.
type Autosaver struct {
	registry *Registry
	interval time.Duration
	done     chan struct{}
}

// NewAutosaver creates an autosaver. A zero interval disables it.
func NewAutosaver(registry *Registry, interval time.Duration) *Autosaver {
	return &Autosaver{
		registry: registry,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the autosave loop in a background goroutine.
func (a *Autosaver) Start(ctx context.Context) {
	logger := util.GetLogger("autosave")
	if a.interval <= 0 {
		logger.Info().Msg("autosave disabled")
		close(a.done)
		return
	}
	logger.Info().Dur("interval", a.interval).Msg("autosave started")

	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.RunOnce()
			case <-ctx.Done():
				a.RunOnce()
				logger.Info().Msg("autosave stopping")
				close(a.done)
				return
			}
		}
	}()
}

// Wait blocks until the autosaver has fully stopped.
func (a *Autosaver) Wait() {
	<-a.done
}

// RunOnce saves every dirty workspace and returns how many were queued.
func (a *Autosaver) RunOnce() int {
	logger := util.GetLogger("autosave")

	var saved, failed int
	a.registry.Range(func(id string, ws *Workspace) bool {
		gen, ok, err := ws.SaveIfDirty()
		switch {
		case err != nil:
			logger.Error().Err(err).Str("project_id", id).Msg("autosave failed")
			failed++
		case ok:
			logger.Debug().Str("project_id", id).Uint64("generation", gen).Msg("autosave queued")
			saved++
		}
		return true
	})

	if saved > 0 || failed > 0 {
		logger.Info().
			Int("saved", saved).
			Int("failed", failed).
			Int("workspaces", a.registry.Len()).
			Msg("autosave cycle complete")
	}
	return saved
}
