package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirDestination writes JSONL data to a file inside a local directory.
// Writes go through a temp file and rename, so readers never observe a
// partial export.
type DirDestination struct {
	dir      string
	filename string
}

func NewDirDestination(dir, filename string) *DirDestination {
	return &DirDestination{dir: dir, filename: filename}
}

func (d *DirDestination) Write(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, d.filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	target := filepath.Join(d.dir, d.filename)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}
