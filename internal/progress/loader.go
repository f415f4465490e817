package progress

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"permit-engine/internal/model"
)

var circuitValidate = validator.New()

// ParseCircuitYAML decodes a circuit definition from YAML (or JSON) bytes.
// Stages are ordered by their order field when present. A stage without a
// pieces key requires nothing, since a file has no upstream to backfill from.
func ParseCircuitYAML(data []byte) (*model.Circuit, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("circuit: definition payload is empty")
	}
	var c model.Circuit
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("circuit: decode definition: %w", err)
	}
	for i := range c.Stages {
		s := &c.Stages[i]
		if s.Label == "" {
			return nil, fmt.Errorf("circuit: stage %d has no label", i)
		}
		if s.Pieces == nil {
			s.Pieces = []model.Piece{}
		}
		for j := range s.Pieces {
			if err := circuitValidate.Struct(s.Pieces[j]); err != nil {
				return nil, fmt.Errorf("circuit: stage %q piece %d: %w", s.Label, j, err)
			}
		}
	}
	sort.SliceStable(c.Stages, func(i, j int) bool { return c.Stages[i].Order < c.Stages[j].Order })
	return &c, nil
}

// LoadCircuitFile loads a circuit definition from path.
func LoadCircuitFile(path string) (*model.Circuit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("circuit: read %s: %w", path, err)
	}
	c, err := ParseCircuitYAML(content)
	if err != nil {
		return nil, fmt.Errorf("circuit: %s: %w", path, err)
	}
	return c, nil
}
