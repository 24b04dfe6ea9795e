package installer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"moduleinstaller/catalog"
)

const testCodeName = "org.example.companion"
const testFlagKey = "moduleInstalled"

// callLog records calls across the test doubles so ordering can be checked.
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (l *callLog) index(call string) int {
	for i, c := range l.calls {
		if c == call {
			return i
		}
	}
	return -1
}

// mockCatalog is a test double for Catalog.
type mockCatalog struct {
	log        *callLog
	unit       *catalog.Unit
	refreshErr error
}

func (m *mockCatalog) RefreshAll(ctx context.Context) error {
	m.log.add("refresh")
	return m.refreshErr
}

func (m *mockCatalog) FindUnit(codeName string) (*catalog.Unit, bool) {
	m.log.add("find")
	if m.unit == nil || m.unit.CodeName != codeName {
		return nil, false
	}
	u := *m.unit
	return &u, true
}

// mockSubsystem is a test double for Subsystem.
type mockSubsystem struct {
	log         *callLog
	canAddErr   error
	downloadErr error
	validateErr error
	installErr  error
	restartErr  error
	restart     bool
	lastRequest Request
}

func (m *mockSubsystem) CanAdd(req Request) error {
	m.log.add("canAdd")
	m.lastRequest = req
	return m.canAddErr
}

func (m *mockSubsystem) Download(ctx context.Context, req Request) (*Artifact, error) {
	m.log.add("download")
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return &Artifact{Request: req, Path: "/tmp/artifact", Size: 1}, nil
}

func (m *mockSubsystem) Validate(ctx context.Context, artifact *Artifact) (*Validated, error) {
	m.log.add("validate")
	if m.validateErr != nil {
		return nil, m.validateErr
	}
	return &Validated{Artifact: artifact}, nil
}

func (m *mockSubsystem) Install(ctx context.Context, validated *Validated) (*RestartHandle, error) {
	m.log.add("install")
	if m.installErr != nil {
		return nil, m.installErr
	}
	if m.restart {
		return &RestartHandle{ID: "restart-1", Units: []string{testCodeName}}, nil
	}
	return nil, nil
}

func (m *mockSubsystem) ScheduleRestart(ctx context.Context, handle *RestartHandle) error {
	m.log.add("scheduleRestart")
	return m.restartErr
}

// mockStore is an in-memory FlagStore.
type mockStore struct {
	log    *callLog
	flags  map[string]bool
	getErr error
	setErr error
	sets   int
	resets int // writes of false
}

func newMockStore(log *callLog) *mockStore {
	return &mockStore{log: log, flags: make(map[string]bool)}
}

func (m *mockStore) Get(key string) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	return m.flags[key], nil
}

func (m *mockStore) Set(key string, value bool) error {
	m.log.add("setFlag")
	m.sets++
	if !value {
		m.resets++
	}
	if m.setErr != nil {
		return m.setErr
	}
	m.flags[key] = value
	return nil
}

func unitWith(versions ...string) *catalog.Unit {
	u := &catalog.Unit{CodeName: testCodeName}
	for _, v := range versions {
		u.Updates = append(u.Updates, catalog.UpdateCandidate{
			Version: v,
			URL:     fmt.Sprintf("https://example.invalid/%s.zip", v),
		})
	}
	return u
}

type fixture struct {
	log       *callLog
	catalog   *mockCatalog
	subsystem *mockSubsystem
	store     *mockStore
	sequencer *Sequencer
}

func newFixture(unit *catalog.Unit) *fixture {
	log := &callLog{}
	f := &fixture{
		log:       log,
		catalog:   &mockCatalog{log: log, unit: unit},
		subsystem: &mockSubsystem{log: log},
		store:     newMockStore(log),
	}
	f.sequencer = NewSequencer(Config{
		CodeName:  testCodeName,
		FlagKey:   testFlagKey,
		Catalog:   f.catalog,
		Subsystem: f.subsystem,
		Store:     f.store,
	})
	return f
}

func (f *fixture) mutatingCalls() int {
	return f.log.count("download") + f.log.count("validate") + f.log.count("install") + f.log.count("scheduleRestart")
}

func TestRun_UnitNotFound(t *testing.T) {
	f := newFixture(nil)

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeNotFound {
		t.Fatalf("expected outcome %q, got %q", OutcomeNotFound, result.Outcome)
	}
	if !errors.Is(result.Err, ErrUnitNotFound) {
		t.Errorf("expected ErrUnitNotFound, got %v", result.Err)
	}
	if f.store.sets != 0 || f.store.flags[testFlagKey] {
		t.Error("flag must stay unset when the unit is not in the catalog")
	}
	if f.log.count("canAdd") != 0 || f.mutatingCalls() != 0 {
		t.Errorf("no install calls expected, got %v", f.log.calls)
	}
}

func TestRun_RefreshErrorIsNotFatal(t *testing.T) {
	f := newFixture(unitWith("1.0.0"))
	f.catalog.refreshErr = errors.New("source unreachable")

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeInstalled {
		t.Fatalf("expected outcome %q despite refresh error, got %q", OutcomeInstalled, result.Outcome)
	}
}

func TestRun_AlreadyInstalled(t *testing.T) {
	unit := unitWith("1.0.0", "1.1.0")
	unit.Installed = &catalog.InstalledVersion{Version: "1.0.0"}
	f := newFixture(unit)

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeAlreadyInstalled {
		t.Fatalf("expected outcome %q, got %q", OutcomeAlreadyInstalled, result.Outcome)
	}
	if result.Err != nil {
		t.Errorf("unexpected error: %v", result.Err)
	}
	if !f.store.flags[testFlagKey] || f.store.sets != 1 {
		t.Errorf("expected exactly one flag write, got %d", f.store.sets)
	}
	if f.log.count("canAdd") != 0 || f.mutatingCalls() != 0 {
		t.Errorf("no install calls expected, got %v", f.log.calls)
	}
}

func TestRun_NoUpdateAvailable(t *testing.T) {
	f := newFixture(unitWith())

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeNoUpdate {
		t.Fatalf("expected outcome %q, got %q", OutcomeNoUpdate, result.Outcome)
	}
	if !f.store.flags[testFlagKey] || f.store.sets != 1 {
		t.Error("an empty update list counts as done and sets the flag once")
	}
	if f.mutatingCalls() != 0 {
		t.Errorf("no install calls expected, got %v", f.log.calls)
	}
}

func TestRun_PreconditionRejected(t *testing.T) {
	f := newFixture(unitWith("1.0.0"))
	f.subsystem.canAddErr = errors.New("host too old")

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected outcome %q, got %q", OutcomeRejected, result.Outcome)
	}
	if !errors.Is(result.Err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", result.Err)
	}
	if f.store.sets != 0 {
		t.Error("flag must stay unset when the precondition fails")
	}
	if f.mutatingCalls() != 0 {
		t.Errorf("no install calls expected after rejection, got %v", f.log.calls)
	}
}

func TestRun_StepFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(m *mockSubsystem)
		step  Step
		calls []string
	}{
		{
			name:  "download",
			setup: func(m *mockSubsystem) { m.downloadErr = boom },
			step:  StepDownload,
			calls: []string{"refresh", "find", "canAdd", "download"},
		},
		{
			name:  "validate",
			setup: func(m *mockSubsystem) { m.validateErr = boom },
			step:  StepValidate,
			calls: []string{"refresh", "find", "canAdd", "download", "validate"},
		},
		{
			name:  "install",
			setup: func(m *mockSubsystem) { m.installErr = boom },
			step:  StepInstall,
			calls: []string{"refresh", "find", "canAdd", "download", "validate", "install"},
		},
		{
			name:  "schedule restart",
			setup: func(m *mockSubsystem) { m.restart = true; m.restartErr = boom },
			step:  StepRestart,
			calls: []string{"refresh", "find", "canAdd", "download", "validate", "install", "scheduleRestart"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(unitWith("1.0.0"))
			tt.setup(f.subsystem)

			result := f.sequencer.Run(context.Background())

			if result.Outcome != OutcomeFailed {
				t.Fatalf("expected outcome %q, got %q", OutcomeFailed, result.Outcome)
			}
			var stepErr *StepError
			if !errors.As(result.Err, &stepErr) || stepErr.Step != tt.step {
				t.Errorf("expected StepError for %q, got %v", tt.step, result.Err)
			}
			if !errors.Is(result.Err, boom) {
				t.Errorf("expected wrapped cause, got %v", result.Err)
			}
			if f.store.sets != 0 {
				t.Error("flag must stay unset after a failed step")
			}
			if fmt.Sprint(f.log.calls) != fmt.Sprint(tt.calls) {
				t.Errorf("expected calls %v, got %v", tt.calls, f.log.calls)
			}
		})
	}
}

func TestRun_InstalledWithoutRestart(t *testing.T) {
	f := newFixture(unitWith("1.0.0", "1.1.0", "1.2.0"))

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeInstalled {
		t.Fatalf("expected outcome %q, got %q", OutcomeInstalled, result.Outcome)
	}
	if result.Version != "1.2.0" || f.subsystem.lastRequest.Candidate.Version != "1.2.0" {
		t.Errorf("expected the last candidate 1.2.0 to be installed, got %q", result.Version)
	}
	if f.log.count("scheduleRestart") != 0 {
		t.Error("restart must not be scheduled when install does not require it")
	}
	if !f.store.flags[testFlagKey] || f.store.sets != 1 {
		t.Error("expected exactly one flag write")
	}
	if result.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRun_PendingRestartSchedulesBeforeFlag(t *testing.T) {
	f := newFixture(unitWith("1.0.0"))
	f.subsystem.restart = true

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomePendingRestart {
		t.Fatalf("expected outcome %q, got %q", OutcomePendingRestart, result.Outcome)
	}
	if n := f.log.count("scheduleRestart"); n != 1 {
		t.Fatalf("expected scheduleRestart exactly once, got %d", n)
	}
	if f.store.sets != 1 || !f.store.flags[testFlagKey] {
		t.Fatal("expected the flag to be written once")
	}
	if f.log.index("scheduleRestart") > f.log.index("setFlag") {
		t.Errorf("restart must be scheduled before the flag is written: %v", f.log.calls)
	}
}

// The catalog order is trusted: an unsorted list installs its last element.
func TestRun_UnsortedCatalogInstallsLastElement(t *testing.T) {
	f := newFixture(unitWith("2.0.0", "1.0.0"))

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeInstalled {
		t.Fatalf("expected outcome %q, got %q", OutcomeInstalled, result.Outcome)
	}
	if f.subsystem.lastRequest.Candidate.Version != "1.0.0" {
		t.Errorf("expected last published candidate 1.0.0, got %s", f.subsystem.lastRequest.Candidate.Version)
	}
}

func TestRun_FlagWriteFailureIsReported(t *testing.T) {
	f := newFixture(unitWith("1.0.0"))
	f.store.setErr = errors.New("disk full")

	result := f.sequencer.Run(context.Background())

	if result.Outcome != OutcomeInstalled {
		t.Fatalf("expected outcome %q, got %q", OutcomeInstalled, result.Outcome)
	}
	if result.Err == nil {
		t.Error("expected the flag write error in the result")
	}
}

type countingReporter struct {
	starts, finishes int
}

func (r *countingReporter) Start(string) { r.starts++ }
func (r *countingReporter) Finish()      { r.finishes++ }

func TestRun_ReportsProgressOnEveryPath(t *testing.T) {
	for _, unit := range []*catalog.Unit{nil, unitWith(), unitWith("1.0.0")} {
		f := newFixture(unit)
		reporter := &countingReporter{}
		f.sequencer.progress = reporter

		f.sequencer.Run(context.Background())

		if reporter.starts != 1 || reporter.finishes != 1 {
			t.Errorf("expected one start and one finish, got %d/%d", reporter.starts, reporter.finishes)
		}
	}
}

func TestOutcomeCompleted(t *testing.T) {
	completed := map[Outcome]bool{
		OutcomeNotFound:         false,
		OutcomeAlreadyInstalled: true,
		OutcomeNoUpdate:         true,
		OutcomeRejected:         false,
		OutcomeFailed:           false,
		OutcomePendingRestart:   true,
		OutcomeInstalled:        true,
	}
	for outcome, want := range completed {
		if got := outcome.Completed(); got != want {
			t.Errorf("%s: expected Completed()=%v, got %v", outcome, want, got)
		}
	}
}
