package hec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

// BuildDocuments maps every event of batch to one HEC document, in order.
// Events without a timestamp are stamped with now.
func BuildDocuments(batch *models.LogBatch, sourceType string, now time.Time) []models.Document {
	docs := make([]models.Document, 0, len(batch.LogEvents))
	for _, e := range batch.LogEvents {
		docs = append(docs, models.Document{
			Host:       batch.LogGroup,
			Source:     batch.LogStream,
			SourceType: sourceType,
			Time:       models.EventTime{Time: e.Time(now)},
			Event:      models.EventBody{Message: e.Message},
		})
	}
	return docs
}

// EncodeDocuments serializes docs as newline-delimited JSON, one document
// per line.
func EncodeDocuments(docs []models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range docs {
		if err := enc.Encode(&docs[i]); err != nil {
			return nil, fmt.Errorf("failed to encode document %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
