package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlProvider reads a YAML file. A missing file yields no values.
type yamlProvider struct {
	path string
}

// NewYAMLProvider creates a YAML file configuration source.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	if y.path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %s: %w", y.path, err)
	}
	return filterNilValues(config), nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// filterNilValues recursively removes nil values so they do not override
// values from earlier sources.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}

// cliProvider carries explicitly set command line flags keyed by config path.
type cliProvider struct {
	values map[string]any
}

// NewCLIProvider creates a source from flag values keyed by dotted config
// path, e.g. "database.url".
func NewCLIProvider(values map[string]any) Source {
	return &cliProvider{values: values}
}

func (c *cliProvider) Load() (map[string]any, error) {
	out := make(map[string]any)
	for path, value := range c.values {
		out[path] = value
	}
	return out, nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}
