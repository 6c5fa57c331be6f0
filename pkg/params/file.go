package params

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"gopkg.in/yaml.v3"
)

// FileStore serves parameters from a YAML file, for running without SSM.
//
//	parameters:
//	  /cloudwatch_to_splunk/my/app/hec_token: "..."
//	log_groups:
//	  /my/app:
//	    hec_endpoint: https://splunk.example.com:8088/services/collector
//	    hec_token: "..."
//	    sourcetype: aws:cloudwatch
//
// Entries under log_groups are expanded with the prefix given to LoadFile.
type FileStore struct {
	values map[string]string
}

type fileFormat struct {
	Parameters map[string]string            `yaml:"parameters"`
	LogGroups  map[string]map[string]string `yaml:"log_groups"`
}

// LoadFile reads a parameter file
func LoadFile(path, prefix string) (*FileStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return ParseFile(b, prefix)
}

// ParseFile parses the YAML parameter file format
func ParseFile(b []byte, prefix string) (*FileStore, error) {
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	s := &FileStore{values: make(map[string]string)}
	for name, v := range f.Parameters {
		s.values[name] = v
	}
	for group, keys := range f.LogGroups {
		for key, v := range keys {
			s.values[ParameterName(prefix, group, key)] = v
		}
	}
	return s, nil
}

// GetParameters mimics ssm.GetParameters: known names are returned,
// unknown ones are listed as invalid.
func (s *FileStore) GetParameters(ctx context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := s.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, types.Parameter{
			Name:  aws.String(name),
			Value: aws.String(v),
			Type:  types.ParameterTypeString,
		})
	}
	return out, nil
}
