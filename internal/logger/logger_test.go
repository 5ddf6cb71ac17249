package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer

	New(&buf, false).Debug("hidden")
	require.Empty(t, buf.String())

	New(&buf, true).Debug("shown", "source", "ann")
	require.Contains(t, buf.String(), "msg=shown")
	require.Contains(t, buf.String(), "source=ann")
}

func TestOrDefault(t *testing.T) {
	require.Equal(t, slog.Default(), OrDefault(nil))

	l := Discard()
	require.Same(t, l, OrDefault(l))
}
