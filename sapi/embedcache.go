// This file persists labelled embeddings so a problem graph is embedded in a
// given solver's topology only once.

package sapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/lanl/qanneal/bqm"
)

// embeddingFileVersion is written into every cache file.
const embeddingFileVersion = 1

// embeddingFileExt is the suffix of cache file names.
const embeddingFileExt = ".emb.zst"

type embeddingFile struct {
	Version int              `json:"version"`
	Solver  string           `json:"solver"`
	Chains  map[string][]int `json:"chains"`
}

// EmbeddingKey names the cache entry for a problem graph on a solver.  The
// key depends only on the solver name, the sorted variables and the sorted
// edges, so any ordering of the same graph maps to the same key.
func EmbeddingKey(solver string, vars []string, edges []bqm.Pair) string {
	vs := append([]string(nil), vars...)
	sort.Strings(vs)
	es := make([]string, len(edges))
	for i, e := range edges {
		p := bqm.NewPair(e[0], e[1])
		es[i] = p[0] + "\x00" + p[1]
	}
	sort.Strings(es)

	h := sha256.New()
	h.Write([]byte(solver))
	h.Write([]byte{0xff})
	h.Write([]byte(strings.Join(vs, "\x00")))
	h.Write([]byte{0xff})
	h.Write([]byte(strings.Join(es, "\x01")))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// EmbeddingPath returns the cache file for key within dir.
func EmbeddingPath(dir, key string) string {
	return filepath.Join(dir, key+embeddingFileExt)
}

// SaveEmbedding writes a labelled embedding to path as zstd-compressed JSON.
// The file is replaced atomically.
func SaveEmbedding(path, solver string, chains map[string][]int) error {
	raw, err := json.Marshal(embeddingFile{
		Version: embeddingFileVersion,
		Solver:  solver,
		Chains:  chains,
	})
	if err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to encode the embedding")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to create a zstd encoder")
	}
	defer enc.Close()
	data := enc.EncodeAll(raw, nil)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to create the embedding cache directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".embedding-*")
	if err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to write %s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrapErrorf(ErrInvalidParameter, err, "Failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to write %s", path)
	}
	return nil
}

// ErrEmbeddingNotCached is returned by LoadEmbedding when no file exists.
var ErrEmbeddingNotCached = errors.New("sapi: embedding not cached")

// LoadEmbedding reads an embedding written by SaveEmbedding.  It returns
// ErrEmbeddingNotCached if path does not exist and an error if the file was
// written for a different solver.
func LoadEmbedding(path, solver string) (map[string][]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrEmbeddingNotCached
		}
		return nil, wrapErrorf(ErrInvalidParameter, err, "Failed to read %s", path)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, wrapErrorf(ErrInvalidParameter, err, "Failed to create a zstd decoder")
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, wrapErrorf(ErrInvalidParameter, err, "Corrupt embedding file %s", path)
	}
	var ef embeddingFile
	if err := json.Unmarshal(raw, &ef); err != nil {
		return nil, wrapErrorf(ErrInvalidParameter, err, "Corrupt embedding file %s", path)
	}
	if ef.Version != embeddingFileVersion {
		return nil, newErrorf(ErrInvalidParameter, "Embedding file %s has version %d, not %d", path, ef.Version, embeddingFileVersion)
	}
	if ef.Solver != solver {
		return nil, newErrorf(ErrInvalidParameter, "Embedding file %s was computed for solver %q, not %q", path, ef.Solver, solver)
	}
	return ef.Chains, nil
}
