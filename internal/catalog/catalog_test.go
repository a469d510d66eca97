package catalog

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeColumnar(t *testing.T, path string, codes []string) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(columnarMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(len(codes)))

	writeStr := func(s string) {
		binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
		buf.WriteString(s)
	}
	for _, code := range codes {
		writeStr(code)
		writeStr(code + " name")
		writeStr("description of " + code)
		writeStr("demographic")
		writeStr("theme1")
		writeStr("product1")
		writeStr("domain1")
		writeStr("numeric")
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // operators
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // keywords
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestLoadColumnar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.bin")
	writeColumnar(t, path, []string{"AGE_25_34", "INCOME_HIGH"})

	snap, err := Load(path, "", "")
	require.NoError(t, err)
	require.Equal(t, 2, snap.Count())
	require.Equal(t, SourceColumnar, snap.SourceFormat)

	v := snap.Get("AGE_25_34")
	require.NotNil(t, v)
	require.Equal(t, "description of AGE_25_34", v.Description)
}

func TestLoadFallsBackToCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "catalog.csv")
	content := "code,name,description,category,theme,product,domain,data_type\n" +
		"AGE_25_34,Adults 25-34,\"Adults aged 25-34\",demographic,theme1,product1,domain1,numeric\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0644))

	snap, err := Load(filepath.Join(dir, "missing.bin"), csvPath, "")
	require.NoError(t, err)
	require.Equal(t, 1, snap.Count())
	require.Equal(t, SourceCSV, snap.SourceFormat)
	require.Contains(t, snap.Get("AGE_25_34").Keywords, "adults")
}

func TestLoadMissingRequiredColumnFails(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,category\nfoo,bar\n"), 0644))

	_, err := Load("", csvPath, "")
	require.Error(t, err)
}

func TestReloadIsAtomicAndReadConsistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.bin")
	writeColumnar(t, path, []string{"AGE_25_34"})

	cat, err := New(path, "", "")
	require.NoError(t, err)

	startingSnapshot := cat.Snapshot()
	require.NotNil(t, startingSnapshot.Get("AGE_25_34"))

	writeColumnar(t, path, []string{"INCOME_HIGH"})
	require.NoError(t, cat.Reload(context.Background()))

	// The snapshot captured before reload still reflects the old data.
	require.NotNil(t, startingSnapshot.Get("AGE_25_34"))
	require.Nil(t, startingSnapshot.Get("INCOME_HIGH"))

	// A fresh snapshot reflects the new data.
	require.Nil(t, cat.Snapshot().Get("AGE_25_34"))
	require.NotNil(t, cat.Snapshot().Get("INCOME_HIGH"))
}

func TestWatchForChangesNeverReloadsAutomatically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.bin")
	writeColumnar(t, path, []string{"AGE_25_34"})

	cat, err := New(path, "", "")
	require.NoError(t, err)

	notified := make(chan struct{}, 1)
	require.NoError(t, cat.WatchForChanges(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	}))
	defer cat.StopWatching()

	writeColumnar(t, path, []string{"INCOME_HIGH"})

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification")
	}

	// No auto-reload happened: the catalog still serves the original data.
	require.NotNil(t, cat.Snapshot().Get("AGE_25_34"))
}
