package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalis-app/telemetry/internal/models"
)

func message(t *testing.T, seq uint64) models.Message {
	t.Helper()
	msg, err := models.NewMessage("on_process_stats", "session", seq, map[string]uint64{"n": seq})
	require.NoError(t, err)
	return msg
}

func TestBuffer_StoreAndRetrieveInOrder(t *testing.T) {
	b, err := New(t.TempDir(), 10, zap.NewNop())
	require.NoError(t, err)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, b.Store(message(t, seq)))
	}
	assert.Equal(t, 3, b.Count())

	msgs, err := b.RetrieveAll()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, uint64(i+1), m.Seq)
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i+1), string(m.Data))
	}
	assert.Zero(t, b.Count())
}

func TestBuffer_RemovesCorruptedFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir, 10, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "00000000T000000.000000000-000000.json"), []byte("{nope"), 0600))
	require.NoError(t, b.Store(message(t, 7)))

	msgs, err := b.RetrieveAll()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint64(7), msgs[0].Seq)
	assert.Zero(t, b.Count())
}

func TestBuffer_DropsOldestWhenFull(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir, 1, zap.NewNop())
	require.NoError(t, err)

	// one file just over the 1 MB cap
	big := models.Message{Topic: "old", Data: json.RawMessage(`"` + strings.Repeat("x", 1<<20) + `"`)}
	require.NoError(t, b.Store(big))
	require.NoError(t, b.Store(message(t, 2)))

	msgs, err := b.RetrieveAll()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint64(2), msgs[0].Seq)
}
