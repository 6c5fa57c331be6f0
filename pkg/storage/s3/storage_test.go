package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosajjal/cwlogs2hec/pkg/models"
	"github.com/mosajjal/cwlogs2hec/pkg/storage"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name, url, bucket, prefix string
		wantErr                   bool
	}{
		{"virtual hosted", "https://mybucket.s3.ap-southeast-2.amazonaws.com/failed/", "mybucket", "failed", false},
		{"virtual hosted dash", "https://mybucket.s3-us-west-2.amazonaws.com/a/b", "mybucket", "a/b", false},
		{"path style", "https://s3.us-east-1.amazonaws.com/mybucket/logs/failed", "mybucket", "logs/failed", false},
		{"s3 scheme", "s3://mybucket/prefix", "mybucket", "prefix", false},
		{"s3 scheme no prefix", "s3://mybucket", "mybucket", "", false},
		{"no bucket", "https://s3.us-east-1.amazonaws.com/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := ParseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestStorage_Store(t *testing.T) {
	client := &fakeS3{}
	s, err := NewStorageWithClient(storage.StorageConfig{Provider: "s3", URL: "s3://mybucket/failed"}, client, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 7, 9, 15, 0, 0, time.UTC) }

	batch := &models.LogBatch{LogGroup: "/my/app", LogStream: "stream1", LogEvents: []models.LogEvent{{Message: "a"}}}
	body := []byte("{\"event\":{\"message\":\"a\"}}\n")
	require.NoError(t, s.Store(context.Background(), batch, body))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "mybucket", aws.ToString(in.Bucket))
	key := aws.ToString(in.Key)
	assert.True(t, strings.HasPrefix(key, "failed/2024/03/07/09/2024-03-07T09:15:00.000Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".json.gz"), key)
	assert.Equal(t, "/my/app", in.Metadata["log-group"])

	gz, err := gzip.NewReader(bytes.NewReader(client.bodies[0]))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, body, plain)
}

func TestStorage_StoreError(t *testing.T) {
	client := &fakeS3{err: errors.New("AccessDenied")}
	s, err := NewStorageWithClient(storage.StorageConfig{URL: "s3://mybucket"}, client, nil)
	require.NoError(t, err)

	err = s.Store(context.Background(), &models.LogBatch{}, []byte("x\n"))
	assert.Error(t, err)
}

func TestStorage_NoPrefix(t *testing.T) {
	s, err := NewStorageWithClient(storage.StorageConfig{URL: "s3://mybucket"}, &fakeS3{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mybucket", s.Bucket())
	key := s.objectKey(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "2024/01/02/03/"), key)
}
