package hec

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func sampleBatch(n int) *models.LogBatch {
	b := &models.LogBatch{LogGroup: "/my/app", LogStream: "stream1"}
	for i := 0; i < n; i++ {
		b.LogEvents = append(b.LogEvents, models.LogEvent{
			Timestamp: ptr(int64(1000 * (i + 1))),
			Message:   string(rune('a' + i)),
		})
	}
	return b
}

func TestBuildDocuments(t *testing.T) {
	batch := sampleBatch(5)
	docs := BuildDocuments(batch, "aws:cloudwatch", time.Now())

	require.Len(t, docs, 5)
	for i, doc := range docs {
		assert.Equal(t, "/my/app", doc.Host)
		assert.Equal(t, "stream1", doc.Source)
		assert.Equal(t, "aws:cloudwatch", doc.SourceType)
		assert.Equal(t, batch.LogEvents[i].Message, doc.Event.Message)
		assert.Equal(t, *batch.LogEvents[i].Timestamp, doc.Time.UnixMilli())
	}
}

func TestBuildDocuments_MissingTimestamp(t *testing.T) {
	batch := &models.LogBatch{
		LogGroup:  "/my/app",
		LogStream: "stream1",
		LogEvents: []models.LogEvent{{Message: "no time"}},
	}

	before := time.Now()
	docs := BuildDocuments(batch, "st", time.Now())
	after := time.Now()

	require.Len(t, docs, 1)
	assert.False(t, docs[0].Time.Before(before.Truncate(time.Millisecond)))
	assert.False(t, docs[0].Time.After(after.Add(time.Second)))
}

func TestBuildDocuments_Empty(t *testing.T) {
	docs := BuildDocuments(&models.LogBatch{LogGroup: "g", LogStream: "s"}, "st", time.Now())
	assert.Empty(t, docs)

	body, err := EncodeDocuments(docs)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestEncodeDocuments(t *testing.T) {
	docs := BuildDocuments(sampleBatch(3), "st", time.Now())
	body, err := EncodeDocuments(docs)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSuffix(body, []byte("\n")), []byte("\n"))
	require.Len(t, lines, 3)
	for i, line := range lines {
		var doc models.Document
		require.NoError(t, json.Unmarshal(line, &doc))
		assert.Equal(t, docs[i].Event.Message, doc.Event.Message)
	}
	assert.True(t, bytes.HasSuffix(body, []byte("\n")))
}

func TestEncodeDocuments_NoHTMLEscaping(t *testing.T) {
	docs := []models.Document{{Event: models.EventBody{Message: "<a> & <b>"}}}
	body, err := EncodeDocuments(docs)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"message":"<a> & <b>"`)
}
