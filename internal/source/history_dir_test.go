package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, root string, dates map[string]string) {
	t.Helper()
	for date, csv := range dates {
		dir := filepath.Join(root, date)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "miso.csv"), []byte(csv), 0o644))
	}
}

func TestHistoryDir_DatesSortedAscending(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, map[string]string{
		"2024-03-15": "Project #\nJ100\n",
		"2024-03-01": "Project #\nJ100\n",
		"2024-03-08": "Project #\nJ100\n",
	})

	dates, err := NewHistoryDir(root).Dates()
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), dates[2])
}

func TestHistoryDir_RejectsStrayDirectories(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, map[string]string{"2024-03-01": "Project #\nJ100\n"})
	require.NoError(t, os.Mkdir(filepath.Join(root, "scratch"), 0o755))

	_, err := NewHistoryDir(root).Dates()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scratch")
}

func TestHistoryDir_EmptyArchiveIsAnError(t *testing.T) {
	_, err := NewHistoryDir(t.TempDir()).Dates()
	require.Error(t, err)
}

func TestHistoryDir_AtReadsDatedSnapshot(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, map[string]string{
		"2024-03-01": "Project #,Study Phase\nJ100,Phase 1\n",
		"2024-03-08": "Project #,Study Phase\nJ100,Phase 2\n",
	})

	h := NewHistoryDir(root)
	table, err := h.At(time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)).Read(context.Background(), "miso")
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Phase 2", table.Get(0, "Study Phase"))
}
