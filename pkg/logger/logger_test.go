package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  zapcore.Level
		valid bool
	}{
		{"DEBUG", zapcore.DebugLevel, true},
		{"info", zapcore.InfoLevel, true},
		{"WARNING", zapcore.WarnLevel, true},
		{"warn", zapcore.WarnLevel, true},
		{"ERROR", zapcore.ErrorLevel, true},
		{"CRITICAL", zapcore.DPanicLevel, true},
		{"", DefaultLevel, false},
		{"loud", DefaultLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.name)
			assert.Equal(t, tt.want, level)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

type bufferSyncer struct{ bytes.Buffer }

func (b *bufferSyncer) Sync() error { return nil }

func TestNew_InvalidLevelWarns(t *testing.T) {
	var buf bufferSyncer
	l := newWithSyncer("nonsense", &buf)
	l.Debug("still logged at default level")

	out := buf.String()
	assert.Contains(t, out, "LOG_LEVEL missing or invalid")
	assert.Contains(t, out, "still logged at default level")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bufferSyncer
	l := newWithSyncer("ERROR", &buf)
	l.Info("hidden")
	l.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewExample()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	scoped := zap.NewNop()
	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}

type redacted string

func (redacted) MarshalJSON() ([]byte, error) { return []byte(`"********"`), nil }

type DumpBase struct {
	ID string `json:"id"`
}

type dumpRecord struct {
	DumpBase
	Created  time.Time            `json:"created"`
	Updated  *time.Time           `json:"updated,omitempty"`
	Seen     []time.Time          `json:"seen"`
	ByName   map[string]time.Time `json:"by_name"`
	Token    redacted             `json:"token"`
	Note     string               `json:"note,omitempty"`
	Internal string               `json:"-"`
	hidden   string
}

func TestMarshalJSON_Time(t *testing.T) {
	v := struct {
		At time.Time `json:"at"`
	}{time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)}

	b, err := MarshalJSON(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2024-05-01T12:30:00.000Z"}`, string(b))
}

func TestMarshalJSON_TimeConvertedToUTC(t *testing.T) {
	aest := time.FixedZone("AEST", 10*3600)
	at := time.Date(2024, 5, 1, 22, 30, 0, 123456789, aest)

	b, err := MarshalJSON(at)
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T12:30:00.123Z"`, string(b))

	b, err = MarshalJSON(&at)
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T12:30:00.123Z"`, string(b))
}

func TestMarshalJSON_NestedTimes(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	v := dumpRecord{
		DumpBase: DumpBase{ID: "r1"},
		Created:  at,
		Updated:  &at,
		Seen:     []time.Time{at},
		ByName:   map[string]time.Time{"first": at},
		Token:    "secret",
		Internal: "skip",
		hidden:   "skip",
	}

	b, err := MarshalJSON(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "r1",
		"created": "2024-01-02T03:04:05.006Z",
		"updated": "2024-01-02T03:04:05.006Z",
		"seen": ["2024-01-02T03:04:05.006Z"],
		"by_name": {"first": "2024-01-02T03:04:05.006Z"},
		"token": "********"
	}`, string(b))
}

func TestMarshalJSON_PlainValues(t *testing.T) {
	b, err := MarshalJSON([]string{"a", "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(b))

	b, err = MarshalJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = MarshalJSON(map[int]string{1: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"x"}`, string(b))
}

func TestDump(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	Dump(l, zapcore.DebugLevel, "skipped", map[string]string{"a": "b"})
	Dump(l, zapcore.InfoLevel, "event", map[string]string{"a": "b"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "event", entry.Message)
	raw, ok := entry.ContextMap()["event"].(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":"b"}`, string(raw))
}
