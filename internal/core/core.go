package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// stopGrace bounds the whole shutdown sequence, not each module.
const stopGrace = 30 * time.Second

// App owns the loaded modules and drives them through Start and Stop.
// Modules start in load order and stop in reverse.
type App struct {
	ctx    *AppContext
	logger *slog.Logger
	loaded []*loadedModule
}

type loadedModule struct {
	id      ModuleID
	mod     Module
	running bool
}

// NewApp returns an App that loads modules through ctx.
func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// LoadModules configures, provisions and validates ids in order. On the
// first failure every module loaded so far is stopped and dropped.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		began := time.Now()
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.unload()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.loaded = append(a.loaded, &loadedModule{id: ModuleID(id), mod: mod})
		a.logger.Info("module loaded", "module", id, "took", time.Since(began).Round(time.Microsecond))
	}
	return nil
}

// Module returns a loaded module by ID.
func (a *App) Module(id string) (Module, bool) {
	for _, lm := range a.loaded {
		if string(lm.id) == id {
			return lm.mod, true
		}
	}
	return nil, false
}

// Start runs Start on every module that has one. A module without Start
// still counts as running so that Stop reaches it. If a module fails, the
// ones before it are stopped again.
func (a *App) Start() error {
	for i, lm := range a.loaded {
		if s, ok := lm.mod.(Starter); ok {
			a.logger.Info("starting module", "module", string(lm.id))
			if err := s.Start(); err != nil {
				a.logger.Error("module start failed", "module", string(lm.id), "error", err)
				a.stopRunning(a.loaded[:i])
				return fmt.Errorf("starting module %s: %w", lm.id, err)
			}
		}
		lm.running = true
	}
	a.logger.Info("all modules started", "count", len(a.loaded))
	return nil
}

// Stop stops the running modules in reverse load order. Modules that were
// never started are skipped. Calling Stop twice is harmless.
func (a *App) Stop() {
	a.stopRunning(a.loaded)
}

func (a *App) stopRunning(mods []*loadedModule) {
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()

	for i := len(mods) - 1; i >= 0; i-- {
		lm := mods[i]
		if !lm.running {
			continue
		}
		lm.running = false
		a.stopOne(ctx, lm)
	}
}

// unload runs after a failed LoadModules. Provision may already have opened
// files or connections, so every loaded module is stopped.
func (a *App) unload() {
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()

	for i := len(a.loaded) - 1; i >= 0; i-- {
		a.stopOne(ctx, a.loaded[i])
	}
	a.loaded = nil
}

func (a *App) stopOne(ctx context.Context, lm *loadedModule) {
	s, ok := lm.mod.(Stopper)
	if !ok {
		return
	}
	a.logger.Info("stopping module", "module", string(lm.id))
	if err := s.Stop(ctx); err != nil {
		a.logger.Error("module stop error", "module", string(lm.id), "error", err)
	}
}
