package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// HistoryDir reads an archive of dated snapshot directories laid out as
// <root>/<YYYY-MM-DD>/<source>.csv, for full-history backfills.
type HistoryDir struct {
	root string
}

// NewHistoryDir creates a reader over a snapshot archive root.
func NewHistoryDir(root string) *HistoryDir {
	return &HistoryDir{root: root}
}

// Dates lists the archived snapshot dates in ascending order. Entries that
// do not parse as dates are an error: a stray directory under the archive
// root means the layout is not what the caller thinks it is.
func (h *HistoryDir) Dates() ([]time.Time, error) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot archive: %w", err)
	}

	dates := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.Parse("2006-01-02", e.Name())
		if err != nil {
			return nil, fmt.Errorf("archive entry %q is not a snapshot date", e.Name())
		}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("snapshot archive %s has no dated directories", h.root)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// At returns the snapshot reader for one archived date.
func (h *HistoryDir) At(date time.Time) *DirReader {
	return NewDirReader(filepath.Join(h.root, date.Format("2006-01-02")))
}
