package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEvent(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "display"))

	log.Info("now showing", Int64("id", 42), Duration("hold", 2*time.Second), Err(nil), Err(errors.New("boom")))
	ev := lastEvent(t, &buf)

	assert.Equal(t, "info", ev["level"])
	assert.Equal(t, "now showing", ev["message"])
	assert.Equal(t, "display", ev["comp"])
	assert.EqualValues(t, 42, ev["id"])
	assert.Equal(t, "boom", ev["err"])
	assert.Contains(t, ev["caller"], "logx_test.go:")
}

func TestWithDoesNotShareFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriter(&buf, "debug").With(String("a", "1"))
	x := base.With(String("b", "x"))
	y := base.With(String("b", "y"))

	x.Info("x")
	assert.Equal(t, "x", lastEvent(t, &buf)["b"])
	y.Info("y")
	assert.Equal(t, "y", lastEvent(t, &buf)["b"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Info("ignored")

	assert.False(t, Nop().IsZero())
	Nop().Error("ignored")
}

func TestServiceFileSinkAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "pubcast.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.Debug("hidden")
	log.Info("visible", String("screen", "main"))

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("now visible")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"screen":"main"`)
	assert.Contains(t, out, "now visible")
	assert.Equal(t, "debug", svc.Config().Level)
}
