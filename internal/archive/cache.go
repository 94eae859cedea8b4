package archive

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// WriteCache serializes a period matrix to its cache artifact path.
// The write goes through a temp file and rename so a crashed run never
// leaves a truncated artifact for the next run to trust.
func WriteCache(path string, m *Matrix) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(m); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// ReadCache deserializes a previously written artifact. The content is
// trusted; no re-validation happens here.
func ReadCache(path string) (*Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	var m Matrix
	if err := gob.NewDecoder(file).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return &m, nil
}
