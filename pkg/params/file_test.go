package params

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
parameters:
  /cloudwatch_to_splunk/other/hec_endpoint: https://other.example.com/services/collector
log_groups:
  /my/app:
    hec_endpoint: https://splunk.example.com:8088/services/collector
    hec_token: abc
    sourcetype: aws:cloudwatch
`

func TestFileStore_Resolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o600))

	store, err := LoadFile(path, "")
	require.NoError(t, err)

	cfg, err := NewResolver(store, Options{}).Resolve(context.Background(), "/my/app")
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.HECToken)
	assert.Equal(t, "aws:cloudwatch", cfg.SourceType)
}

func TestFileStore_PartialGroup(t *testing.T) {
	store, err := ParseFile([]byte(sampleFile), "")
	require.NoError(t, err)

	_, err = NewResolver(store, Options{}).Resolve(context.Background(), "/other")

	var missing *ConfigMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{KeyHECToken, KeySourceType}, missing.Keys)
}

func TestFileStore_CustomPrefix(t *testing.T) {
	store, err := ParseFile([]byte(sampleFile), "/custom")
	require.NoError(t, err)

	cfg, err := NewResolver(store, Options{Prefix: "/custom"}).Resolve(context.Background(), "/my/app")
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.HECToken)
}

func TestFileStore_Invalid(t *testing.T) {
	_, err := ParseFile([]byte("parameters: [unbalanced"), "")
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
