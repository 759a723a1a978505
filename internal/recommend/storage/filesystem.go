// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

const (
	latestFileName = "LATEST"
	lockFileName   = "LATEST.lock"
	artifactPrefix = "model_v"
	artifactSuffix = ".bin.gz"

	// lockRetryDelay is the pause between attempts to take the directory lock.
	lockRetryDelay = 10 * time.Millisecond

	// staleLockAge is how old a lock file must be before it is considered
	// left behind by a crashed writer and removed.
	staleLockAge = 2 * time.Minute

	// maxVersionClaims bounds the attempts to claim a free version number.
	maxVersionClaims = 8
)

// latestPointer is the JSON content of the LATEST file and of the badger
// latest key.
type latestPointer struct {
	Version   int       `json:"version"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore stores artifacts as versioned files in a directory.
//
// The directory may be shared by several processes. Writers are serialised
// within the process by a mutex and across processes by a lock file, so
// version numbers are never reused and LATEST only moves forward. Artifact
// files are hard-linked into place, which fails instead of replacing an
// existing version. Readers take no lock file and never see a partial file
// because every file is synced before it becomes visible.
type FileStore struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time

	mu sync.RWMutex
}

// NewFileStore creates a store in dir, creating the directory if needed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("model store directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With().Str("component", "model_store").Str("backend", BackendFilesystem).Logger(),
		now:    time.Now,
	}, nil
}

func (s *FileStore) artifactPath(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%06d%s", artifactPrefix, version, artifactSuffix))
}

// parseArtifactName extracts the version from a name like "model_v000003.bin.gz".
func parseArtifactName(name string) (int, bool) {
	if !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactSuffix) {
		return 0, false
	}
	var version int
	digits := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactSuffix)
	if _, err := fmt.Sscanf(digits, "%d", &version); err != nil || version < 1 {
		return 0, false
	}
	return version, true
}

// versions returns every artifact version present on disk, ascending.
func (s *FileStore) versions() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var out []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if v, ok := parseArtifactName(entry.Name()); ok {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Save writes model as the next version and then moves the LATEST pointer.
func (s *FileStore) Save(ctx context.Context, model *recommend.FactorModel) (version int, err error) {
	defer observe(BackendFilesystem, "save", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockDir(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	existing, err := s.versions()
	if err != nil {
		return 0, err
	}
	version = 1
	if len(existing) > 0 {
		version = existing[len(existing)-1] + 1
	}

	var info recommend.ArtifactInfo
	for attempt := 0; ; attempt++ {
		info, err = s.publishArtifact(model, version)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || attempt+1 >= maxVersionClaims {
			return 0, fmt.Errorf("write model file: %w", err)
		}
		s.logger.Warn().Int("version", version).Msg("model version already taken, trying the next one")
		version++
	}

	if err := s.advanceLatest(latestPointer{Version: version, Checksum: info.Checksum, UpdatedAt: info.SavedAt}); err != nil {
		return 0, fmt.Errorf("update latest pointer: %w", err)
	}

	recordSize(BackendFilesystem, info.SizeBytes)
	s.logger.Info().
		Int("version", version).
		Str("run_id", info.RunID).
		Int64("size_bytes", info.SizeBytes).
		Msg("model artifact saved")

	return version, nil
}

// publishArtifact encodes model as version and links it into place. It
// returns an error wrapping fs.ErrExist when the version file already exists.
func (s *FileStore) publishArtifact(model *recommend.FactorModel, version int) (recommend.ArtifactInfo, error) {
	info, compressed, err := encodeArtifact(model, version, s.now())
	if err != nil {
		return recommend.ArtifactInfo{}, err
	}

	var buf bytes.Buffer
	if err := encodeEnvelope(&buf, &envelope{Info: info, Compressed: compressed}); err != nil {
		return recommend.ArtifactInfo{}, fmt.Errorf("encode artifact envelope: %w", err)
	}

	tmpName, err := s.writeTemp(buf.Bytes())
	if err != nil {
		return recommend.ArtifactInfo{}, err
	}
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // the linked name keeps the data

	if err := os.Link(tmpName, s.artifactPath(version)); err != nil {
		return recommend.ArtifactInfo{}, err
	}
	s.syncDir()
	return info, nil
}

// advanceLatest points LATEST at p unless it already names a newer version.
// Must be called with the directory lock held.
func (s *FileStore) advanceLatest(p latestPointer) error {
	current, err := s.readLatest()
	switch {
	case err == nil && current.Version >= p.Version:
		return nil
	case err != nil && !errors.Is(err, recommend.ErrNotFound) && !errors.Is(err, recommend.ErrCorruptArtifact):
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode latest pointer: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.dir, latestFileName), data)
}

// lockDir takes the cross-process writer lock. A lock file older than
// staleLockAge is treated as abandoned.
func (s *FileStore) lockDir(ctx context.Context) (unlock func(), err error) {
	path := filepath.Join(s.dir, lockFileName)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path is inside the store directory
		if err == nil {
			// The file's existence is the lock.
			_ = f.Close() //nolint:errcheck // nothing was written
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if st, statErr := os.Stat(path); statErr == nil && time.Since(st.ModTime()) > staleLockAge {
			s.logger.Warn().Time("locked_at", st.ModTime()).Msg("removing stale model store lock")
			_ = os.Remove(path) //nolint:errcheck // another waiter may have removed it first
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for model store lock: %w", ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}

// writeTemp writes data to a synced temporary file in the store directory
// and returns its name.
func (s *FileStore) writeTemp(data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	fail := func(err error) (string, error) {
		_ = tmp.Close()        //nolint:errcheck // the first error takes precedence
		_ = os.Remove(tmpName) //nolint:errcheck // best effort removal of a temp file
		return "", err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort removal of a temp file
		return "", err
	}
	return tmpName, nil
}

// writeAtomic writes data to a temporary file and renames it to path.
func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmpName, err := s.writeTemp(data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort removal of a temp file
		return err
	}
	s.syncDir()
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform
// supports it, so failures are only logged.
func (s *FileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer func() { _ = d.Close() }() //nolint:errcheck // read-only handle
	if err := d.Sync(); err != nil {
		s.logger.Debug().Err(err).Msg("directory sync not supported")
	}
}

func (s *FileStore) readLatest() (latestPointer, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return latestPointer{}, recommend.ErrNotFound
	}
	if err != nil {
		return latestPointer{}, fmt.Errorf("read latest pointer: %w", err)
	}
	var p latestPointer
	if err := json.Unmarshal(data, &p); err != nil {
		return latestPointer{}, fmt.Errorf("decode latest pointer: %v: %w", err, recommend.ErrCorruptArtifact)
	}
	if p.Version < 1 {
		return latestPointer{}, fmt.Errorf("latest pointer has version %d: %w", p.Version, recommend.ErrCorruptArtifact)
	}
	return p, nil
}

func (s *FileStore) readEnvelope(version int) (*envelope, error) {
	f, err := os.Open(s.artifactPath(version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("version %d: %w", version, recommend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	env, err := decodeEnvelope(f)
	if err != nil {
		return nil, fmt.Errorf("version %d: %w", version, err)
	}
	if env.Info.Version != version {
		return nil, fmt.Errorf("file for version %d holds version %d: %w",
			version, env.Info.Version, recommend.ErrCorruptArtifact)
	}
	return env, nil
}

// Load returns the given version, or the version named by LATEST when
// version is 0.
func (s *FileStore) Load(ctx context.Context, version int) (model *recommend.FactorModel, info recommend.ArtifactInfo, err error) {
	defer observe(BackendFilesystem, "load", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}
	if version < 0 {
		return nil, recommend.ArtifactInfo{}, fmt.Errorf("version %d: %w", version, recommend.ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		p, err := s.readLatest()
		if err != nil {
			return nil, recommend.ArtifactInfo{}, err
		}
		version = p.Version
	}

	env, err := s.readEnvelope(version)
	if err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}
	model, err = decodeArtifact(&env.Info, env.Compressed)
	if err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}
	return model, env.Info, nil
}

// LatestVersion returns the version named by LATEST.
func (s *FileStore) LatestVersion(ctx context.Context) (version int, err error) {
	defer observe(BackendFilesystem, "latest", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.readLatest()
	if err != nil {
		return 0, err
	}
	return p.Version, nil
}

// List returns the info of every readable artifact, oldest first. Unreadable
// files are logged and skipped.
func (s *FileStore) List(ctx context.Context) (infos []recommend.ArtifactInfo, err error) {
	defer observe(BackendFilesystem, "list", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.versions()
	if err != nil {
		return nil, err
	}

	infos = make([]recommend.ArtifactInfo, 0, len(versions))
	for _, v := range versions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env, err := s.readEnvelope(v)
		if err != nil {
			s.logger.Warn().Err(err).Int("version", v).Msg("skipping unreadable model artifact")
			continue
		}
		infos = append(infos, env.Info)
	}
	return infos, nil
}

// DeleteOlderThan keeps the newest retain versions. The version named by
// LATEST is never removed.
func (s *FileStore) DeleteOlderThan(ctx context.Context, retain int) (deleted int, err error) {
	defer observe(BackendFilesystem, "prune", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockDir(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	p, err := s.readLatest()
	if errors.Is(err, recommend.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	versions, err := s.versions()
	if err != nil {
		return 0, err
	}
	cutoff := retainCutoff(versions, retain)

	for _, v := range versions {
		if v >= cutoff || v == p.Version {
			continue
		}
		if err := os.Remove(s.artifactPath(v)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, fmt.Errorf("delete model version %d: %w", v, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Int("retain", retain).Msg("pruned old model artifacts")
	}
	return deleted, nil
}

// Close implements Store. A FileStore holds no open resources.
func (s *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
