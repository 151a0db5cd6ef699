package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdLoggerLevelsAndPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(false, InfoLevel)
	l.SetOutput(&buf)
	l.RegisterChain(84532, "base")

	l.Debug("hidden")
	l.InfoWithChain(84532, "escrow %s", "0x01")
	l.ErrorWithChain(7, "unknown chain")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO]   [BASE]  escrow 0x01")
	assert.Contains(t, out, "[ERROR]  [7]     unknown chain")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("NOTICE")
	require.NoError(t, err)
	assert.Equal(t, NoticeLevel, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogrusLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrusLogger(&buf, DebugLevel)

	l.NoticeWithChain(3, "validation failed: %s", "amount")

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "validation failed: amount", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, float64(3), entry["chain_id"])
}
