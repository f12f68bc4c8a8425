package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	initWithWriter("flashsquad-test", false, &buf)

	buf.Reset()
	Info().Str("k", "v").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "flashsquad-test", entry["service"])
	assert.Equal(t, "v", entry["k"])
	assert.Contains(t, entry, "timestamp")
}

func TestInit_DebugFiltering(t *testing.T) {
	var buf bytes.Buffer
	initWithWriter("svc", false, &buf)
	buf.Reset()

	Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	initWithWriter("svc", true, &buf)
	buf.Reset()
	Debug().Msg("visible")
	assert.True(t, strings.Contains(buf.String(), "visible"))
}

func TestStep(t *testing.T) {
	var buf bytes.Buffer
	initWithWriter("svc", false, &buf)
	buf.Reset()

	l := Step("0xabc", "scanning")
	l.Info().Msg("scan")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "0xabc", entry["wallet"])
	assert.Equal(t, "scanning", entry["step"])
}
