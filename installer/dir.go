package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	semver "github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"

	"moduleinstaller/cache"
	"moduleinstaller/catalog"
)

const (
	manifestFileName = "installed.json"
	restartFileName  = "restart-pending.json"
)

// Manifest records the installed version of a unit.
type Manifest struct {
	CodeName    string    `json:"code_name"`
	Version     string    `json:"version"`
	File        string    `json:"file"`
	SHA256      string    `json:"sha256"`
	InstalledAt time.Time `json:"installed_at"`

	// PendingRestart holds the id of a restart that has not been scheduled
	// yet. Until it is cleared the unit does not count as installed.
	PendingRestart string `json:"pending_restart,omitempty"`
}

// DirSubsystem installs unit artifacts into a modules directory laid out as
// <modules>/<code name>/<version>/<file>, with <modules>/<code name>/installed.json
// pointing at the active version.
type DirSubsystem struct {
	modulesDir  string
	hostVersion *semver.Version
	cache       *cache.Cache
}

// NewDirSubsystem creates the modules directory if needed. hostVersion is
// checked against candidate host constraints; it may be empty when the
// catalog publishes none.
func NewDirSubsystem(modulesDir, hostVersion string, c *cache.Cache) (*DirSubsystem, error) {
	if err := os.MkdirAll(modulesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create modules directory: %w", err)
	}

	d := &DirSubsystem{modulesDir: modulesDir, cache: c}
	if hostVersion != "" {
		v, err := semver.NewVersion(hostVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid host version %q: %w", hostVersion, err)
		}
		d.hostVersion = v
	}
	return d, nil
}

// CanAdd rejects candidates that cannot be installed on this host.
func (d *DirSubsystem) CanAdd(req Request) error {
	if req.Unit == nil {
		return fmt.Errorf("request has no unit")
	}
	if !safeSegment(req.Unit.CodeName) {
		return fmt.Errorf("code name %q is not a valid directory name", req.Unit.CodeName)
	}
	if !safeSegment(req.Candidate.Version) {
		return fmt.Errorf("version %q is not a valid directory name", req.Candidate.Version)
	}
	if req.Candidate.URL == "" {
		return fmt.Errorf("candidate %s has no download URL", req.Candidate.Version)
	}

	if req.Candidate.HostConstraint != "" {
		constraint, err := semver.NewConstraint(req.Candidate.HostConstraint)
		if err != nil {
			return fmt.Errorf("invalid host constraint %q: %w", req.Candidate.HostConstraint, err)
		}
		if d.hostVersion == nil {
			return fmt.Errorf("candidate requires host %s but the host version is not configured", req.Candidate.HostConstraint)
		}
		if !constraint.Check(d.hostVersion) {
			return fmt.Errorf("host version %s does not satisfy %s", d.hostVersion, req.Candidate.HostConstraint)
		}
	}

	return nil
}

func (d *DirSubsystem) Download(ctx context.Context, req Request) (*Artifact, error) {
	p, size, err := d.cache.FetchFile(ctx, req.Candidate.URL)
	if err != nil {
		return nil, err
	}
	return &Artifact{Request: req, Path: p, Size: size}, nil
}

// Validate checks the size and, when the catalog publishes one, the SHA-256
// digest of the artifact.
func (d *DirSubsystem) Validate(ctx context.Context, artifact *Artifact) (*Validated, error) {
	candidate := artifact.Request.Candidate

	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	if size == 0 {
		return nil, fmt.Errorf("artifact %s is empty", artifact.Path)
	}
	if candidate.Size > 0 && size != candidate.Size {
		return nil, fmt.Errorf("artifact size %d does not match catalog size %d", size, candidate.Size)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	if candidate.SHA256 != "" && !strings.EqualFold(candidate.SHA256, sum) {
		return nil, fmt.Errorf("sha256 mismatch: catalog %s, artifact %s", candidate.SHA256, sum)
	}

	return &Validated{Artifact: artifact, SHA256: sum}, nil
}

// Install copies the artifact into place and records the manifest.
func (d *DirSubsystem) Install(ctx context.Context, validated *Validated) (*RestartHandle, error) {
	req := validated.Artifact.Request
	unitDir := filepath.Join(d.modulesDir, req.Unit.CodeName)
	versionDir := filepath.Join(unitDir, req.Candidate.Version)

	if err := os.MkdirAll(versionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", versionDir, err)
	}

	fileName := artifactName(req.Candidate.URL)
	if err := copyFile(validated.Artifact.Path, filepath.Join(versionDir, fileName)); err != nil {
		return nil, err
	}

	var handle *RestartHandle
	if req.Candidate.RequiresRestart {
		handle = &RestartHandle{
			ID:          ulid.Make().String(),
			Units:       []string{req.Unit.CodeName},
			RequestedAt: time.Now().UTC(),
		}
	}

	manifest := &Manifest{
		CodeName:    req.Unit.CodeName,
		Version:     req.Candidate.Version,
		File:        filepath.Join(req.Candidate.Version, fileName),
		SHA256:      validated.SHA256,
		InstalledAt: time.Now().UTC(),
	}
	if handle != nil {
		manifest.PendingRestart = handle.ID
	}
	if err := writeJSON(filepath.Join(unitDir, manifestFileName), manifest); err != nil {
		return nil, err
	}

	log.Printf("[installer] Installed %s into %s", req, versionDir)
	return handle, nil
}

// ScheduleRestart records the pending restart for the host to pick up on its
// next shutdown, then marks the units of handle as installed. Handles already
// pending are merged.
func (d *DirSubsystem) ScheduleRestart(ctx context.Context, handle *RestartHandle) error {
	pending, err := d.RestartPending()
	if err != nil {
		return err
	}

	merged := *handle
	if pending != nil {
		seen := make(map[string]bool)
		merged.Units = nil
		for _, u := range append(pending.Units, handle.Units...) {
			if !seen[u] {
				seen[u] = true
				merged.Units = append(merged.Units, u)
			}
		}
	}

	if err := writeJSON(filepath.Join(d.modulesDir, restartFileName), &merged); err != nil {
		return err
	}

	for _, codeName := range handle.Units {
		if err := d.clearPendingRestart(codeName, handle.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *DirSubsystem) clearPendingRestart(codeName, restartID string) error {
	if !safeSegment(codeName) {
		return nil
	}

	path := filepath.Join(d.modulesDir, codeName, manifestFileName)
	var manifest Manifest
	ok, err := readJSON(path, &manifest)
	if err != nil || !ok || manifest.PendingRestart != restartID {
		return err
	}

	manifest.PendingRestart = ""
	return writeJSON(path, &manifest)
}

// RestartPending returns the scheduled restart, or nil when none is pending.
func (d *DirSubsystem) RestartPending() (*RestartHandle, error) {
	var handle RestartHandle
	ok, err := readJSON(filepath.Join(d.modulesDir, restartFileName), &handle)
	if err != nil || !ok {
		return nil, err
	}
	return &handle, nil
}

// Installed implements catalog.InstalledLookup. A unit whose restart was never
// scheduled reads as not installed so the next run repeats the install.
func (d *DirSubsystem) Installed(codeName string) (*catalog.InstalledVersion, error) {
	if !safeSegment(codeName) {
		return nil, nil
	}

	unitDir := filepath.Join(d.modulesDir, codeName)
	var manifest Manifest
	ok, err := readJSON(filepath.Join(unitDir, manifestFileName), &manifest)
	if err != nil || !ok {
		return nil, err
	}
	if manifest.PendingRestart != "" {
		return nil, nil
	}

	return &catalog.InstalledVersion{
		Version: manifest.Version,
		Path:    filepath.Join(unitDir, manifest.File),
	}, nil
}

func safeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}

func artifactName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if !safeSegment(name) {
		return "artifact.bin"
	}
	return name
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// writeJSON atomically replaces path with the JSON encoding of v.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// readJSON reports false without error when path does not exist.
func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}
