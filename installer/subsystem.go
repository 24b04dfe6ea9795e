package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moduleinstaller/catalog"
)

// Subsystem performs the install of one unit version. Each step consumes the
// product of the previous one.
type Subsystem interface {
	// CanAdd reports why req cannot be installed, or nil if it can.
	CanAdd(req Request) error

	// Download acquires the artifact for req.
	Download(ctx context.Context, req Request) (*Artifact, error)

	// Validate checks a downloaded artifact.
	Validate(ctx context.Context, artifact *Artifact) (*Validated, error)

	// Install applies a validated artifact. A non-nil handle means a restart
	// is required to finish the install.
	Install(ctx context.Context, validated *Validated) (*RestartHandle, error)

	// ScheduleRestart arranges for the restart described by handle.
	ScheduleRestart(ctx context.Context, handle *RestartHandle) error
}

// Request pairs a unit with the candidate chosen for it.
type Request struct {
	Unit      *catalog.Unit
	Candidate catalog.UpdateCandidate
}

func (r Request) String() string {
	if r.Unit == nil {
		return r.Candidate.Version
	}
	return r.Unit.CodeName + "@" + r.Candidate.Version
}

// Artifact is a downloaded, not yet validated, install payload.
type Artifact struct {
	Request Request
	Path    string
	Size    int64
}

// Validated is an artifact that passed validation.
type Validated struct {
	Artifact *Artifact
	SHA256   string
}

// RestartHandle is an opaque token for a restart needed to finish an install.
type RestartHandle struct {
	ID          string    `json:"id"`
	Units       []string  `json:"units"`
	RequestedAt time.Time `json:"requested_at"`
}

// Step names an install step in errors and logs.
type Step string

const (
	StepDownload Step = "download"
	StepValidate Step = "validate"
	StepInstall  Step = "install"
	StepRestart  Step = "schedule-restart"
)

// StepError is an operational failure of one install step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnitNotFound is reported when the catalog does not list the unit.
	ErrUnitNotFound = errors.New("unit not found in catalog")

	// ErrRejected is reported when the subsystem refuses the chosen candidate.
	ErrRejected = errors.New("install request rejected")
)
