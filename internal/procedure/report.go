package procedure

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Report captures validation results for a procedure file.
type Report struct {
	Path     string
	Nickname string
	Steps    int
	Errors   []error
}

// ValidateFile reads a procedure file and collects every problem instead of
// stopping at the first one.
func ValidateFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read procedure file: %w", err)
	}
	var p Procedure
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse procedure file: %w", err)
	}
	return &Report{
		Path:     path,
		Nickname: p.Nickname,
		Steps:    len(p.Steps),
		Errors:   p.Problems(),
	}, nil
}

// IsValid reports whether the validation passed.
func (r *Report) IsValid() bool {
	return r != nil && len(r.Errors) == 0
}
