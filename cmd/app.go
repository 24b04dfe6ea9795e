package cmd

import (
	"fmt"
	"log"
	"time"

	"moduleinstaller/cache"
	"moduleinstaller/catalog"
	"moduleinstaller/config"
	"moduleinstaller/installer"
	"moduleinstaller/logger"
	"moduleinstaller/progress"
	"moduleinstaller/state"
)

// app holds the components built from one configuration.
type app struct {
	cfg       *config.Config
	logs      *logger.Manager
	events    *logger.Emitter
	cache     *cache.Cache
	subsystem *installer.DirSubsystem
	catalog   *catalog.Client
	store     state.Store
}

// newApp wires the components. catalogTTL is the reuse window for remote
// indexes; the install run passes zero so the catalog is always revalidated.
func newApp(cfg *config.Config, catalogTTL time.Duration) (*app, error) {
	logs := logger.NewManager()
	if err := logs.UpdateSinks(cfg.Logging.Sinks); err != nil {
		log.Printf("[logger] Some sinks could not be configured: %v", err)
	}
	events := logger.NewEmitter("moduleinstaller", logs, verbose)

	c, err := newCache(cfg)
	if err != nil {
		logs.Close()
		return nil, err
	}

	subsystem, err := installer.NewDirSubsystem(cfg.Install.ModulesDir, cfg.Install.HostVersion, c)
	if err != nil {
		logs.Close()
		return nil, err
	}

	sources := make([]catalog.Source, 0, len(cfg.Catalog.Sources))
	for _, s := range cfg.Catalog.Sources {
		if s.IsRemote() {
			sources = append(sources, catalog.NewHTTPSource(s.Name, s.URL, catalogTTL, c))
		} else {
			sources = append(sources, catalog.NewFileSource(s.Name, s.LocalPath()))
		}
	}
	if len(sources) == 0 {
		events.Warning("catalog.no_sources", "No catalog sources configured", nil)
	}

	store, err := state.Open(cfg.State.Backend, cfg.State.Dir, cfg.State.Namespace)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	return &app{
		cfg:       cfg,
		logs:      logs,
		events:    events,
		cache:     c,
		subsystem: subsystem,
		catalog:   catalog.NewClient(sources, subsystem, events),
		store:     store,
	}, nil
}

func (a *app) progress() progress.Reporter {
	reporters := progress.Multi{&progress.LogReporter{}}
	if u := a.cfg.Progress.WebSocketURL; u != "" {
		reporters = append(reporters, progress.NewWebSocketReporter(u, GetUserAgent()))
	}
	return reporters
}

func (a *app) sequencer() *installer.Sequencer {
	return installer.NewSequencer(installer.Config{
		CodeName:  a.cfg.Unit.CodeName,
		FlagKey:   a.cfg.Unit.FlagKey,
		Catalog:   a.catalog,
		Subsystem: a.subsystem,
		Store:     a.store,
		Progress:  a.progress(),
		Events:    a.events,
	})
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[state] Failed to close store: %v", err)
	}
	if err := a.logs.Close(); err != nil {
		log.Printf("[logger] Failed to close sinks: %v", err)
	}
}
