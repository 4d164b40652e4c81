// Package artifact fetches model weights and the hash manifest from a remote
// backend into a local directory and verifies them against the manifest.
package artifact

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"fcsrv/internal/common/fsutil"
	"fcsrv/internal/events"
)

// ProgressFunc is called once per download with the object name and its size
// (0 when unknown). The returned writer, if non-nil, receives every byte copied.
type ProgressFunc func(name string, total int64) io.Writer

// Config configures a Store.
type Config struct {
	Backend     Backend
	UpdateCheck bool
	Progress    ProgressFunc
	Logger      zerolog.Logger
	Publisher   events.Publisher
}

// Store downloads and verifies artifacts. It is safe for concurrent use.
type Store struct {
	backend     Backend
	updateCheck bool
	progress    ProgressFunc
	log         zerolog.Logger
	pub         events.Publisher

	// mu guards the manifest cache; manifest loads are serialized.
	mu        sync.Mutex
	manifests map[string]Manifest
	refreshed map[string]bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New returns a Store reading from cfg.Backend.
func New(cfg Config) *Store {
	return &Store{
		backend:     cfg.Backend,
		updateCheck: cfg.UpdateCheck,
		progress:    cfg.Progress,
		log:         cfg.Logger,
		pub:         events.OrNop(cfg.Publisher),
		manifests:   make(map[string]Manifest),
		refreshed:   make(map[string]bool),
		locks:       make(map[string]*sync.Mutex),
	}
}

// UpdateCheck reports whether fetched artifacts are verified against the manifest.
func (s *Store) UpdateCheck() bool { return s.updateCheck }

// Fetch makes name available in dir and returns its path. A missing artifact
// is downloaded; force re-downloads it and refreshes the manifest. With update
// checking enabled the file is hashed and, on mismatch, downloaded once more
// without a second verification.
func (s *Store) Fetch(ctx context.Context, name, dir string, force bool) (string, error) {
	base, err := BaseName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", newError(ErrFilesystem, name, err)
	}
	path := filepath.Join(dir, name)

	unlock := s.lockPath(path)
	defer unlock()

	if force || !fsutil.PathExists(path) {
		if err := s.download(ctx, name, path); err != nil {
			return "", err
		}
	}
	if !s.updateCheck && !force {
		return path, nil
	}

	m, err := s.manifest(ctx, dir, force)
	if err != nil {
		if IsFilesystem(err) {
			return "", err
		}
		s.log.Warn().Err(err).Str("artifact", name).Msg("manifest unavailable, skipping verification")
		return path, nil
	}
	if !s.updateCheck {
		// forced refresh only
		return path, nil
	}
	want, ok := m[base]
	if !ok {
		return "", newError(ErrManifestEntryMissing, name, nil)
	}
	got, err := FileDigest(path)
	if err != nil {
		return "", newError(ErrFilesystem, name, err)
	}
	if got == want {
		return path, nil
	}

	hashMismatchTotal.Inc()
	s.log.Warn().Str("artifact", name).Str("expected", want.String()).Str("actual", got.String()).Msg("artifact digest mismatch, downloading again")
	s.pub.Publish(events.New("artifact_hash_mismatch", "", map[string]any{"artifact": name, "expected": want.String(), "actual": got.String()}))
	if err := s.download(ctx, name, path); err != nil {
		return "", err
	}
	return path, nil
}

// Report is the outcome of Verify.
type Report struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Expected digest.Digest `json:"expected"`
	Actual   digest.Digest `json:"actual,omitempty"`
	OK       bool          `json:"ok"`
}

// Verify hashes the local copy of name against the manifest without downloading
// the artifact. A missing local file yields a report with OK false.
func (s *Store) Verify(ctx context.Context, name, dir string) (Report, error) {
	base, err := BaseName(name)
	if err != nil {
		return Report{}, err
	}
	path := filepath.Join(dir, name)
	rep := Report{Name: name, Path: path}
	m, err := s.manifest(ctx, dir, false)
	if err != nil {
		return rep, err
	}
	want, ok := m[base]
	if !ok {
		return rep, newError(ErrManifestEntryMissing, name, nil)
	}
	rep.Expected = want
	if !fsutil.PathExists(path) {
		return rep, nil
	}
	got, err := FileDigest(path)
	if err != nil {
		return rep, newError(ErrFilesystem, name, err)
	}
	rep.Actual = got
	rep.OK = got == want
	return rep, nil
}

// manifest returns the manifest for dir, downloading it when no local copy
// exists. refresh discards both the cached and the on-disk copy. With update
// checking enabled the first load per directory refreshes as well.
func (s *Store) manifest(ctx context.Context, dir string, refresh bool) (Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(dir, ManifestName)
	if refresh || (s.updateCheck && !s.refreshed[dir]) {
		s.refreshed[dir] = true
		delete(s.manifests, dir)
		if err := fsutil.RemoveIfExists(path); err != nil {
			return nil, newError(ErrFilesystem, ManifestName, err)
		}
	}
	if m, ok := s.manifests[dir]; ok {
		return m, nil
	}
	if !fsutil.PathExists(path) {
		if err := s.download(ctx, ManifestName, path); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(ErrFilesystem, ManifestName, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	s.manifests[dir] = m
	return m, nil
}

// download streams key into dst through a sibling .part file.
func (s *Store) download(ctx context.Context, key, dst string) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		downloadsTotal.WithLabelValues(result).Inc()
	}()

	rc, size, err := s.backend.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	s.log.Info().Str("artifact", key).Str("backend", s.backend.String()).Int64("bytes", size).Msg("downloading")
	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return newError(ErrFilesystem, key, err)
	}
	var w io.Writer = f
	if s.progress != nil {
		if pw := s.progress(key, size); pw != nil {
			w = io.MultiWriter(f, pw)
		}
	}
	n, copyErr := io.Copy(w, rc)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		var pe *fs.PathError
		if errors.As(copyErr, &pe) {
			return newError(ErrFilesystem, key, copyErr)
		}
		return newError(ErrNetwork, key, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return newError(ErrFilesystem, key, closeErr)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return newError(ErrFilesystem, key, err)
	}
	s.log.Debug().Str("artifact", key).Int64("written", n).Msg("download complete")
	s.pub.Publish(events.New("artifact_download", "", map[string]any{"artifact": key, "bytes": n}))
	return nil
}

func (s *Store) lockPath(path string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[path] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}
