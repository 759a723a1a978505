// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

// Package storage persists trained factor models as versioned artifacts.
//
// Every backend implements recommend.ArtifactStore. Save never overwrites an
// existing version: each call allocates the next version number, writes the
// artifact completely, and only then moves the latest pointer. A concurrent
// Load therefore sees either the previous latest artifact or the new one,
// never a partial write.
//
// # Artifact Format
//
// A model is serialized with its own gob encoding (FactorModel.MarshalBinary),
// checksummed with SHA-256 and gzip-compressed. The checksum covers the
// uncompressed bytes and is verified on every load:
//
//  1. Decompress gzip data
//  2. Compute SHA-256 of decompressed data
//  3. Compare with the stored checksum
//  4. Return recommend.ErrCorruptArtifact on mismatch
//
// # Backends
//
// FileStore keeps one file per version in a directory:
//
//	/data/models/
//	  model_v000001.bin.gz
//	  model_v000002.bin.gz
//	  LATEST               <- {"version":2,...}
//
// Artifact files are written to a synced temporary file and hard-linked
// into place, so an existing version is never replaced. LATEST is renamed
// into place and only moves forward. Writers sharing a directory, including
// ones in other processes, take turns through a LATEST.lock file.
//
// BadgerStore keeps blobs, metadata, the version sequence and the latest
// pointer in a BadgerDB instance and updates all of them in one read-write
// transaction. Opened in-memory it serves as the "memory" backend for tests
// and development.
//
// BreakerStore wraps any backend with a circuit breaker. recommend.ErrNotFound
// is an expected answer and does not count as a failure. While the breaker is
// open every call fails fast with recommend.ErrStoreUnavailable, which the
// engine treats like a missing model.
//
// # Usage Example
//
//	store, err := storage.Open(storage.Config{Backend: storage.BackendFilesystem, Path: "/data/models"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	version, err := store.Save(ctx, model)
//	model, info, err := store.Load(ctx, 0) // 0 = latest
package storage
