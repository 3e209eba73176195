package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirReader reads per-source snapshot files from a directory laid out as
// one <source>.csv per feed.
type DirReader struct {
	dir string
}

// NewDirReader creates a reader over the given snapshot directory.
func NewDirReader(dir string) *DirReader {
	return &DirReader{dir: dir}
}

// Read loads the snapshot table for one source.
func (r *DirReader) Read(ctx context.Context, src string) (*RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, src+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot for %s: %w", src, err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return table, nil
}
