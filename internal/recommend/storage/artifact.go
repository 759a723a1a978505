// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// envelope is the on-disk format of a FileStore artifact.
type envelope struct {
	Info       recommend.ArtifactInfo
	Compressed []byte
}

// encodeArtifact serializes, checksums and compresses model as version.
func encodeArtifact(model *recommend.FactorModel, version int, now time.Time) (recommend.ArtifactInfo, []byte, error) {
	raw, err := model.MarshalBinary()
	if err != nil {
		return recommend.ArtifactInfo{}, nil, err
	}

	hash := sha256.Sum256(raw)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return recommend.ArtifactInfo{}, nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return recommend.ArtifactInfo{}, nil, fmt.Errorf("finalize compression: %w", err)
	}

	info := recommend.NewArtifactInfo(model, version)
	info.Checksum = hex.EncodeToString(hash[:])
	info.SizeBytes = int64(compressed.Len())
	info.SavedAt = now

	return info, compressed.Bytes(), nil
}

// decodeArtifact decompresses and verifies an artifact against info.
func decodeArtifact(info *recommend.ArtifactInfo, compressed []byte) (*recommend.FactorModel, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("version %d: decompress: %v: %w", info.Version, err, recommend.ErrCorruptArtifact)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("version %d: read decompressed data: %v: %w", info.Version, err, recommend.ErrCorruptArtifact)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != info.Checksum {
		return nil, fmt.Errorf("version %d: checksum mismatch: expected %s, got %s: %w",
			info.Version, info.Checksum, checksum, recommend.ErrCorruptArtifact)
	}

	model := new(recommend.FactorModel)
	if err := model.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("version %d: %v: %w", info.Version, err, recommend.ErrCorruptArtifact)
	}
	return model, nil
}

func encodeEnvelope(w io.Writer, env *envelope) error {
	return gob.NewEncoder(w).Encode(env)
}

func decodeEnvelope(r io.Reader) (*envelope, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("read artifact envelope: %v: %w", err, recommend.ErrCorruptArtifact)
	}
	return &env, nil
}

// retainCutoff returns the oldest version kept when the newest retain
// versions of sorted ascending versions survive. The latest version always
// survives.
func retainCutoff(versions []int, retain int) int {
	if retain < 1 {
		retain = 1
	}
	if len(versions) <= retain {
		return 0
	}
	return versions[len(versions)-retain]
}
