package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/latticesim/contact-sim/sim/sweep"
)

// loadSweepConfig overlays the YAML file at path onto base. Fields absent
// from the file keep base's values. Uses strict field checking so typos fail.
func loadSweepConfig(path string, base sweep.Config) (sweep.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("reading sweep config: %w", err)
	}
	cfg := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return sweep.Config{}, fmt.Errorf("parsing sweep config %s: %w", path, err)
	}
	return cfg, nil
}
