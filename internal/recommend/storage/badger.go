// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// Artifact storage key layout.
const (
	badgerBlobPrefix = "artifact/blob/"
	badgerMetaPrefix = "artifact/meta/"
	badgerLatestKey  = "artifact/latest"
	badgerSeqKey     = "artifact/seq"
)

func blobKey(version int) []byte {
	return []byte(fmt.Sprintf("%s%010d", badgerBlobPrefix, version))
}

func metaKey(version int) []byte {
	return []byte(fmt.Sprintf("%s%010d", badgerMetaPrefix, version))
}

// BadgerStore stores artifacts in BadgerDB.
//
// Blob, metadata, sequence and latest pointer of a version are written in a
// single transaction, so readers observe either all of them or none.
type BadgerStore struct {
	db      *badger.DB
	backend string
	logger  zerolog.Logger
	now     func() time.Time

	// writeMu serialises Save and DeleteOlderThan so their transactions
	// never conflict.
	writeMu sync.Mutex
}

// OpenBadgerStore opens (or creates) a BadgerDB at path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenBadgerStore(path string, logger zerolog.Logger) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("badger model store path is required")
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for models: %w", err)
	}
	return newBadgerStore(db, BackendBadger, logger), nil
}

// OpenMemoryStore opens an in-memory BadgerDB. Artifacts are lost on Close.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenMemoryStore(logger zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger db for models: %w", err)
	}
	return newBadgerStore(db, BackendMemory, logger), nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newBadgerStore(db *badger.DB, backend string, logger zerolog.Logger) *BadgerStore {
	return &BadgerStore{
		db:      db,
		backend: backend,
		logger:  logger.With().Str("component", "model_store").Str("backend", backend).Logger(),
		now:     time.Now,
	}
}

func getInt(txn *badger.Txn, key string) (int, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	err = item.Value(func(val []byte) error {
		n, err = strconv.Atoi(string(val))
		return err
	})
	return n, err
}

func getLatest(txn *badger.Txn) (latestPointer, error) {
	item, err := txn.Get([]byte(badgerLatestKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return latestPointer{}, recommend.ErrNotFound
	}
	if err != nil {
		return latestPointer{}, fmt.Errorf("read latest pointer: %w", err)
	}
	var p latestPointer
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	})
	if err != nil {
		return latestPointer{}, fmt.Errorf("decode latest pointer: %v: %w", err, recommend.ErrCorruptArtifact)
	}
	return p, nil
}

func getInfo(txn *badger.Txn, version int) (recommend.ArtifactInfo, error) {
	item, err := txn.Get(metaKey(version))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return recommend.ArtifactInfo{}, fmt.Errorf("version %d: %w", version, recommend.ErrNotFound)
	}
	if err != nil {
		return recommend.ArtifactInfo{}, fmt.Errorf("read artifact metadata: %w", err)
	}
	var info recommend.ArtifactInfo
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &info)
	})
	if err != nil {
		return recommend.ArtifactInfo{}, fmt.Errorf("version %d: decode metadata: %v: %w", version, err, recommend.ErrCorruptArtifact)
	}
	return info, nil
}

// Save allocates the next version and writes the artifact and pointers in
// one transaction.
func (s *BadgerStore) Save(ctx context.Context, model *recommend.FactorModel) (version int, err error) {
	defer observe(s.backend, "save", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// The checksum does not depend on the version, so the expensive encoding
	// happens outside the transaction.
	info, compressed, err := encodeArtifact(model, 0, s.now())
	if err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		seq, err := getInt(txn, badgerSeqKey)
		if err != nil {
			return fmt.Errorf("read version sequence: %w", err)
		}
		version = seq + 1
		info.Version = version

		meta, err := json.Marshal(&info)
		if err != nil {
			return fmt.Errorf("encode artifact metadata: %w", err)
		}
		pointer, err := json.Marshal(latestPointer{Version: version, Checksum: info.Checksum, UpdatedAt: info.SavedAt})
		if err != nil {
			return fmt.Errorf("encode latest pointer: %w", err)
		}

		if err := txn.Set(blobKey(version), compressed); err != nil {
			return err
		}
		if err := txn.Set(metaKey(version), meta); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerSeqKey), []byte(strconv.Itoa(version))); err != nil {
			return err
		}
		return txn.Set([]byte(badgerLatestKey), pointer)
	})
	if err != nil {
		return 0, fmt.Errorf("save model artifact: %w", err)
	}

	recordSize(s.backend, info.SizeBytes)
	s.logger.Info().
		Int("version", version).
		Str("run_id", info.RunID).
		Int64("size_bytes", info.SizeBytes).
		Msg("model artifact saved")

	return version, nil
}

// Load returns the given version, or the latest when version is 0.
func (s *BadgerStore) Load(ctx context.Context, version int) (model *recommend.FactorModel, info recommend.ArtifactInfo, err error) {
	defer observe(s.backend, "load", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}
	if version < 0 {
		return nil, recommend.ArtifactInfo{}, fmt.Errorf("version %d: %w", version, recommend.ErrNotFound)
	}

	var compressed []byte
	err = s.db.View(func(txn *badger.Txn) error {
		if version == 0 {
			p, err := getLatest(txn)
			if err != nil {
				return err
			}
			version = p.Version
		}

		info, err = getInfo(txn, version)
		if err != nil {
			return err
		}

		item, err := txn.Get(blobKey(version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("version %d: blob missing: %w", version, recommend.ErrCorruptArtifact)
		}
		if err != nil {
			return fmt.Errorf("read artifact blob: %w", err)
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}

	model, err = decodeArtifact(&info, compressed)
	if err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}
	return model, info, nil
}

// LatestVersion returns the latest saved version.
func (s *BadgerStore) LatestVersion(ctx context.Context) (version int, err error) {
	defer observe(s.backend, "latest", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		p, err := getLatest(txn)
		version = p.Version
		return err
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// List returns the info of every stored artifact, oldest first.
func (s *BadgerStore) List(ctx context.Context) (infos []recommend.ArtifactInfo, err error) {
	defer observe(s.backend, "list", time.Now(), &err)

	infos = []recommend.ArtifactInfo{}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerMetaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var info recommend.ArtifactInfo
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				s.logger.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping unreadable artifact metadata")
				continue
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// DeleteOlderThan keeps the newest retain versions. The latest version is
// never removed.
func (s *BadgerStore) DeleteOlderThan(ctx context.Context, retain int) (deleted int, err error) {
	defer observe(s.backend, "prune", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		p, err := getLatest(txn)
		if errors.Is(err, recommend.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var versions []int
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerMetaPrefix)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			v, convErr := strconv.Atoi(key[len(badgerMetaPrefix):])
			if convErr != nil {
				continue
			}
			versions = append(versions, v)
		}
		it.Close()

		cutoff := retainCutoff(versions, retain)
		for _, v := range versions {
			if v >= cutoff || v == p.Version {
				continue
			}
			if err := txn.Delete(blobKey(v)); err != nil {
				return err
			}
			if err := txn.Delete(metaKey(v)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune model artifacts: %w", err)
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Int("retain", retain).Msg("pruned old model artifacts")
	}
	return deleted, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
