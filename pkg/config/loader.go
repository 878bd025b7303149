package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// load reads a single lattice.yaml file, expands {{.VAR}}-style environment
// references (see ExpandEnv), and unmarshals it into a Config. A missing
// file is not an error here — it yields an empty Config that mergeDefaults
// then fills in. llm.primary_model has no default, so Validate (and
// therefore Initialize) still rejects a configuration built from no file.
func load(path string) (*Config, error) {
	cfg := &Config{Agents: map[string]*AgentDefinition{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if cfg.Agents == nil {
		cfg.Agents = map[string]*AgentDefinition{}
	}
	for agentType, def := range cfg.Agents {
		if def.Type == "" {
			def.Type = agentType
		}
	}

	return cfg, nil
}
