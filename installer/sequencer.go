package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"moduleinstaller/catalog"
	"moduleinstaller/logger"
	"moduleinstaller/progress"
	"moduleinstaller/selector"
)

const progressLabel = "Installing module..."

// Catalog is the part of the catalog client the sequencer needs.
type Catalog interface {
	RefreshAll(ctx context.Context) error
	FindUnit(codeName string) (*catalog.Unit, bool)
}

// FlagStore persists the "install handled" flag.
type FlagStore interface {
	Get(key string) (bool, error)
	Set(key string, value bool) error
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeNotFound         Outcome = "not-found"
	OutcomeAlreadyInstalled Outcome = "already-installed"
	OutcomeNoUpdate         Outcome = "no-update"
	OutcomeRejected         Outcome = "rejected"
	OutcomeFailed           Outcome = "failed"
	OutcomePendingRestart   Outcome = "pending-restart"
	OutcomeInstalled        Outcome = "installed"
)

// Completed reports whether the outcome records the unit as handled. Only
// completed outcomes write the flag; the others are retried on the next start.
func (o Outcome) Completed() bool {
	switch o {
	case OutcomeAlreadyInstalled, OutcomeNoUpdate, OutcomePendingRestart, OutcomeInstalled:
		return true
	}
	return false
}

// Result describes one run of the sequencer.
type Result struct {
	RunID   string
	Outcome Outcome
	Unit    string
	Version string

	// Err is the error that ended the run, or a failure to persist the flag
	// after a completed outcome.
	Err error
}

type runState int

const (
	runStart runState = iota
	runRefreshed
	runUnitLocated
	runInstallable
	runPendingRestart
)

// Config wires a Sequencer to its collaborators.
type Config struct {
	CodeName  string
	FlagKey   string
	Catalog   Catalog
	Subsystem Subsystem
	Store     FlagStore
	Progress  progress.Reporter
	Events    *logger.Emitter
}

// Sequencer drives the check-select-install workflow for one unit.
type Sequencer struct {
	codeName  string
	flagKey   string
	catalog   Catalog
	subsystem Subsystem
	store     FlagStore
	progress  progress.Reporter
	events    *logger.Emitter
}

// NewSequencer creates a sequencer. A nil progress reporter discards progress.
func NewSequencer(cfg Config) *Sequencer {
	reporter := cfg.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}

	return &Sequencer{
		codeName:  cfg.CodeName,
		flagKey:   cfg.FlagKey,
		catalog:   cfg.Catalog,
		subsystem: cfg.Subsystem,
		store:     cfg.Store,
		progress:  reporter,
		events:    cfg.Events.Component("installer"),
	}
}

// Run executes the workflow once, from a catalog refresh to a terminal
// outcome. Every error is logged and reported in the result; none aborts
// the caller.
func (s *Sequencer) Run(ctx context.Context) Result {
	runID := ulid.Make().String()
	events := s.events.With(logger.Fields{"run_id": runID, "unit": s.codeName})

	s.progress.Start(progressLabel)
	defer s.progress.Finish()

	result := Result{RunID: runID, Unit: s.codeName}

	var (
		unit    *catalog.Unit
		req     Request
		restart *RestartHandle
	)

	for st := runStart; ; {
		switch st {
		case runStart:
			// Per-source failures are already logged by the catalog client.
			_ = s.catalog.RefreshAll(ctx)
			st = runRefreshed

		case runRefreshed:
			found, ok := s.catalog.FindUnit(s.codeName)
			if !ok {
				events.Info("install.not_found", fmt.Sprintf("Cannot find module %s to install", s.codeName), nil)
				result.Outcome = OutcomeNotFound
				result.Err = ErrUnitNotFound
				return result
			}
			unit = found
			st = runUnitLocated

		case runUnitLocated:
			if unit.Installed != nil {
				result.Version = unit.Installed.Version
				events.Info("install.already_installed", "Module is already installed", logger.Fields{"version": unit.Installed.Version})
				return s.complete(events, result, OutcomeAlreadyInstalled)
			}

			if !selector.Ascending(unit.Updates) {
				events.Warning("catalog.unsorted", "Catalog candidates are not in ascending order, installing the last one as published", nil)
			}

			candidate, ok := selector.PickLatest(unit.Updates)
			if !ok {
				events.Info("install.no_update", "No installable version published", nil)
				return s.complete(events, result, OutcomeNoUpdate)
			}
			req = Request{Unit: unit, Candidate: candidate}
			result.Version = candidate.Version
			st = runInstallable

		case runInstallable:
			if err := s.subsystem.CanAdd(req); err != nil {
				events.Warning("install.rejected", "Cannot install module update", logger.Fields{
					"version": req.Candidate.Version,
					"reason":  err.Error(),
				})
				result.Outcome = OutcomeRejected
				result.Err = fmt.Errorf("%w: %s: %v", ErrRejected, req, err)
				return result
			}

			handle, err := s.install(ctx, req)
			if err != nil {
				return s.fail(events, result, err)
			}
			if handle == nil {
				events.Info("install.done", "Module installed", logger.Fields{"version": req.Candidate.Version})
				return s.complete(events, result, OutcomeInstalled)
			}
			restart = handle
			st = runPendingRestart

		case runPendingRestart:
			if err := s.subsystem.ScheduleRestart(ctx, restart); err != nil {
				return s.fail(events, result, &StepError{Step: StepRestart, Err: err})
			}
			events.Info("install.restart_scheduled", "Module installed, restart scheduled", logger.Fields{
				"version":    req.Candidate.Version,
				"restart_id": restart.ID,
			})
			return s.complete(events, result, OutcomePendingRestart)
		}
	}
}

// install runs download, validate and install in order and stops at the
// first failing step.
func (s *Sequencer) install(ctx context.Context, req Request) (*RestartHandle, error) {
	artifact, err := s.subsystem.Download(ctx, req)
	if err != nil {
		return nil, &StepError{Step: StepDownload, Err: err}
	}

	validated, err := s.subsystem.Validate(ctx, artifact)
	if err != nil {
		return nil, &StepError{Step: StepValidate, Err: err}
	}

	handle, err := s.subsystem.Install(ctx, validated)
	if err != nil {
		return nil, &StepError{Step: StepInstall, Err: err}
	}
	return handle, nil
}

func (s *Sequencer) fail(events *logger.Emitter, result Result, err error) Result {
	fields := logger.Fields{"version": result.Version, "error": err.Error()}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		fields["step"] = string(stepErr.Step)
	}
	events.Severe("install.failed", "Module install failed", fields)

	result.Outcome = OutcomeFailed
	result.Err = err
	return result
}

// complete writes the flag exactly once for a completed outcome.
func (s *Sequencer) complete(events *logger.Emitter, result Result, outcome Outcome) Result {
	result.Outcome = outcome
	if err := s.store.Set(s.flagKey, true); err != nil {
		events.Severe("state.write_failed", "Failed to persist install flag", logger.Fields{
			"key":   s.flagKey,
			"error": err.Error(),
		})
		result.Err = fmt.Errorf("failed to persist %s: %w", s.flagKey, err)
	}
	return result
}
