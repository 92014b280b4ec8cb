package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds the contents of .apilens/config.yaml, giving repeat
// invocations a place to pin defaults instead of repeating flags.
type ProjectConfig struct {
	PackageName  string   `yaml:"package_name"`
	EntryModules []string `yaml:"entry_modules"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	LocalBuild   bool     `yaml:"local_build"`
}

// loadProjectConfig reads .apilens/config.yaml from the current directory.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig() (*ProjectConfig, error) {
	data, err := os.ReadFile(".apilens/config.yaml")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
