package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/config"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/lock"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/logging"
)

// Installer orchestrates fetch, verification and placement of entries.
type Installer struct {
	baseDir  string
	fetcher  *Fetcher
	verifier *Verifier
	placer   *Placer
	log      logging.Logger
}

// Config holds configuration for the installer.
type Config struct {
	// BaseDir anchors targets and key paths that contain "..".
	BaseDir string
	// Fetcher downloads artifacts. A default single-attempt fetcher is used
	// when nil.
	Fetcher *Fetcher
	Logger  logging.Logger
}

// NewInstaller creates a new installer
func NewInstaller(cfg Config) (*Installer, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("BaseDir is required")
	}

	log := logging.OrNop(cfg.Logger)
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(WithLogger(log))
	}

	return &Installer{
		baseDir:  cfg.BaseDir,
		fetcher:  fetcher,
		verifier: NewVerifier(log),
		placer:   NewPlacer(log),
		log:      log,
	}, nil
}

// InstallAll installs entries one after another and stops at the first
// failure. Results for the entries processed so far are returned either way.
func (i *Installer) InstallAll(ctx context.Context, entries []config.Entry) ([]*InstallResult, error) {
	results := make([]*InstallResult, 0, len(entries))
	for _, e := range entries {
		res, err := i.Install(ctx, e)
		if err != nil {
			return results, fmt.Errorf("install %s: %w", e.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Install fetches, verifies and places one entry. If the resolved target
// already exists nothing is downloaded or written.
func (i *Installer) Install(ctx context.Context, e config.Entry) (*InstallResult, error) {
	start := time.Now()

	if err := e.ValidateInstall(); err != nil {
		return nil, err
	}

	target, err := ResolveTarget(i.baseDir, e.Target)
	if err != nil {
		return nil, err
	}

	result := &InstallResult{
		Name:   e.Name,
		Target: target,
		Format: DetectFormat(e.URL),
	}

	if present, err := exists(target); err != nil {
		return nil, err
	} else if present {
		i.log.Debug("target exists, skipping", "target", target)
		result.Skipped = true
		return result, nil
	}

	l, err := lock.Acquire(ctx, lock.PathFor(target), lock.DefaultRetryDelay)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := l.Release(); err != nil {
			i.log.Warn("release lock", "path", l.Path(), "error", err)
		}
	}()

	// Another process may have finished while we waited for the lock.
	if present, err := exists(target); err != nil {
		return nil, err
	} else if present {
		i.log.Debug("target appeared while waiting for lock, skipping", "target", target)
		result.Skipped = true
		return result, nil
	}

	data, err := i.fetcher.Fetch(ctx, e.URL, e.SHA256)
	if err != nil {
		return nil, err
	}
	result.Verified = VerificationSHA256

	if e.HasSignature() {
		if err := i.verifySignature(ctx, e, data); err != nil {
			return nil, err
		}
		result.Verified = VerificationGPG
	}

	opts := PlaceOptions{
		Format:          result.Format,
		ExtractSkip:     e.ExtractSkip,
		ExtractOnly:     e.ExtractOnly,
		StripComponents: e.StripComponents,
	}
	if e.Chmod != nil {
		mode := e.Chmod.Perm()
		opts.Chmod = &mode
	}

	if result.Format.IsArchive() {
		result.Files, err = i.extractStaged(data, target, opts)
	} else {
		result.Files, err = i.placer.Place(data, target, opts)
	}
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	i.log.Info("installed", "name", e.Name, "target", target, "files", len(result.Files),
		"verified", result.Verified.String(), "duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// extractStaged extracts into a sibling staging directory and renames it onto
// target once every member is written. When no member was written the target
// is not created.
func (i *Installer) extractStaged(data []byte, target string, opts PlaceOptions) ([]string, error) {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}

	staging := filepath.Join(parent, fmt.Sprintf(".%s.staging-%s", filepath.Base(target), uuid.NewString()))
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			i.log.Warn("remove staging directory", "path", staging, "error", err)
		}
	}()

	staged, err := i.placer.Extract(data, staging, opts)
	if err != nil {
		return nil, err
	}

	if len(staged) == 0 {
		if opts.ExtractOnly != "" {
			i.log.Warn("no archive member matched extract_only", "extract_only", opts.ExtractOnly)
		} else {
			i.log.Warn("archive produced no files", "target", target)
		}
		return nil, nil
	}

	if err := os.Rename(staging, target); err != nil {
		return nil, fmt.Errorf("move staging directory into place: %w", err)
	}

	files := make([]string, 0, len(staged))
	for _, p := range staged {
		rel, err := filepath.Rel(staging, p)
		if err != nil {
			return nil, fmt.Errorf("relativize %s: %w", p, err)
		}
		files = append(files, filepath.Join(target, rel))
	}
	return files, nil
}

// verifySignature downloads the entry's detached signature and checks it
// against data with the configured public key.
func (i *Installer) verifySignature(ctx context.Context, e config.Entry, data []byte) error {
	keyPath, err := ResolveTarget(i.baseDir, e.PublicKey)
	if err != nil {
		return err
	}

	i.log.Debug("fetching signature", "url", e.SignatureURL)
	sig, err := i.fetcher.Get(ctx, e.SignatureURL)
	if err != nil {
		return fmt.Errorf("download signature: %w", err)
	}

	return i.verifier.VerifySignature(data, sig, keyPath)
}
