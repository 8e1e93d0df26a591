package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/reglet-bridge/config"
)

// YamlConfigParser parses host configuration written in YAML.
type YamlConfigParser struct{}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser() *YamlConfigParser {
	return &YamlConfigParser{}
}

// Parse unmarshals YAML bytes into a HostConfig.
func (p *YamlConfigParser) Parse(data []byte) (*config.HostConfig, error) {
	var cfg config.HostConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse host config: %w", err)
	}
	return &cfg, nil
}
