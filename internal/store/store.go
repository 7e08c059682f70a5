// Package store persists the recordarr documents: recordings, saved streams,
// and settings. Each collection is one JSON document on disk with a
// read-through in-memory cache and a single-writer discipline per document.
//
// Writes replace the whole document atomically (temp file + rename), so a
// successful durable write implies the entire document is on disk. Callers on
// hot paths may update the cache only; the next durable write flushes it.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// readDocument reads and unmarshals a JSON document. A missing file is not an
// error; it reports found=false so the caller can fall back to an empty or
// default value. A corrupt file is logged and also treated as absent.
func readDocument(path string, v any, logger *slog.Logger) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading document %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("corrupt document treated as empty",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false, nil
	}
	return true, nil
}

// writeDocumentAtomic marshals v and replaces the document at path atomically:
// the payload lands in a uniquely-named temp file in the same directory and is
// renamed over the target.
func writeDocumentAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling document %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}

	tempName := fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), randomHex(8))
	tempPath := filepath.Join(dir, tempName)

	if err := os.WriteFile(tempPath, data, 0640); err != nil {
		return fmt.Errorf("writing temporary document: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing document %s: %w", path, err)
	}

	return nil
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}
