package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile reads a flat YAML mapping of KEY: value pairs. Scalar values of any type are kept
// in their literal form, so "ETH_RATE_LIMIT: 5" and "ETH_RATE_LIMIT: '5'" are equivalent.
func FromFile(path string) (EnvMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	env := make(EnvMap)
	if len(doc.Content) == 0 {
		return env, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config file %s: top level must be a mapping", path)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch value.Kind {
		case yaml.ScalarNode:
			env[strings.TrimSpace(key.Value)] = value.Value
		case yaml.SequenceNode:
			items := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("config file %s: %s must be a list of scalars", path, key.Value)
				}
				items = append(items, item.Value)
			}
			env[strings.TrimSpace(key.Value)] = strings.Join(items, ",")
		default:
			return nil, fmt.Errorf("config file %s: %s must be a scalar or list", path, key.Value)
		}
	}
	return env, nil
}
