package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInit_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, FormatSimple)

	slog.Info("cart updated", "items", 2)
	slog.Debug("hidden")

	assert.Equal(t, "INFO cart updated items=2\n", buf.String())
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, &buf, FormatJSON)

	slog.Warn("slow query", "ms", 120)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "slow query", rec["msg"])
	assert.EqualValues(t, 120, rec["ms"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelError, &buf, FormatSimple)

	slog.Info("before")
	SetLevel(slog.LevelInfo)
	slog.Info("after")

	assert.Equal(t, slog.LevelInfo, Level())
	assert.Equal(t, "INFO after\n", buf.String())
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, FormatSimple)

	slog.Default().With("session", "s1").Info("turn done")

	assert.Equal(t, "INFO turn done session=s1\n", buf.String())
}

func TestFromModule(t *testing.T) {
	var pcs [1]uintptr
	runtime.Callers(1, pcs[:])
	assert.True(t, fromModule(pcs[0]), "test function")
	assert.True(t, fromModule(0), "record without caller")

	// Frame two levels up from the less func is inside package sort.
	var foreign uintptr
	sort.Slice([]int{2, 1}, func(i, j int) bool {
		if foreign == 0 {
			runtime.Callers(2, pcs[:])
			foreign = pcs[0]
		}
		return i < j
	})
	require.NotZero(t, foreign)
	assert.False(t, fromModule(foreign), "sort internals")
}

func TestModuleRecordsSurviveInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, FormatSimple)

	emit := func(msg string) { slog.Info(msg) }
	emit("from closure")
	slog.Default().Info("from default")

	assert.Equal(t, "INFO from closure\nINFO from default\n", buf.String())
}
