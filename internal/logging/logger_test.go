package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureCreatesLogFilesWhenDebug(t *testing.T) {
	tempDir := t.TempDir()

	require.NoError(t, Configure(tempDir, Config{
		DebugMode: true,
		Level:     "debug",
	}))
	defer CloseAll()

	cats := []Category{
		CategoryBoot, CategoryCatalog, CategoryQuery, CategoryKeyword,
		CategorySemantic, CategoryScorer, CategorySimilarity, CategorySession,
		CategoryRouter, CategoryResilience, CategoryFacade, CategoryHTTP,
	}
	for _, c := range cats {
		Get(c).Info("test entry for %s", c)
	}

	logsDir := filepath.Join(tempDir, ".audiencelens", "logs")
	entries, err := os.ReadDir(logsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestDisabledCategoryIsNoop(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, Configure(tempDir, Config{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"catalog": false},
	}))
	defer CloseAll()

	require.False(t, IsCategoryEnabled(CategoryCatalog))
	// Must not panic when writing through a disabled category's no-op logger.
	Get(CategoryCatalog).Error("should not be written")
}

func TestConfigureNoopWithoutDebugMode(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, Configure(tempDir, Config{DebugMode: false}))

	logsDir := filepath.Join(tempDir, ".audiencelens", "logs")
	_, err := os.Stat(logsDir)
	require.True(t, os.IsNotExist(err))
}

func TestStructuredLogIncludesRequestID(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, Configure(tempDir, Config{DebugMode: true, Level: "debug", JSONFormat: true}))
	defer CloseAll()

	l := Get(CategoryFacade)
	l.StructuredLog("info", "search completed", "req-123", map[string]interface{}{"total_found": 2})

	logsDir := filepath.Join(tempDir, ".audiencelens", "logs")
	entries, err := os.ReadDir(logsDir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "facade") {
			found = true
		}
	}
	require.True(t, found)
}
