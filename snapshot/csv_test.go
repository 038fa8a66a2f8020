package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelCSVWriterWritesSortedHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.csv")

	w, err := NewChannelCSVWriter(path, []string{"GEN2.pelec", "GEN1.pelec"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(0, map[string]float64{"GEN1.pelec": 10, "GEN2.pelec": 20}))
	require.NoError(t, w.WriteRow(1, map[string]float64{"GEN1.pelec": 11, "GEN2.pelec": 21}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "time (s),GEN1.pelec,GEN2.pelec")
	assert.Contains(t, content, "0,10,20")
	assert.Contains(t, content, "1,11,21")
}
