package procedure

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes and validates a procedure definition. Durations use Go
// duration strings ("9m", "30s").
func ParseYAML(data []byte) (Procedure, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Procedure{}, fmt.Errorf("procedure: definition payload is empty")
	}
	var p Procedure
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Procedure{}, fmt.Errorf("procedure: decode definition: %w", err)
	}
	return p.Normalized()
}

// LoadReader reads a procedure definition from r.
func LoadReader(r io.Reader) (Procedure, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Procedure{}, fmt.Errorf("procedure: read definition: %w", err)
	}
	return ParseYAML(content)
}

// LoadFile loads a procedure definition from an explicit path.
func LoadFile(path string) (Procedure, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Procedure{}, fmt.Errorf("procedure: read %s: %w", path, err)
	}
	p, parseErr := ParseYAML(content)
	if parseErr != nil {
		return Procedure{}, fmt.Errorf("procedure: %s: %w", path, parseErr)
	}
	return p, nil
}

// LoadDir loads every *.yaml / *.yml file in dir, sorted by file name. A
// missing directory yields no procedures. Files that fail to parse are
// returned as errors alongside the ones that loaded.
func LoadDir(dir string) ([]Procedure, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("procedure: list %s: %w", dir, err)}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	var (
		out  []Procedure
		errs []error
	)
	for _, name := range names {
		p, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errs
}

// Export writes p as YAML.
func Export(w io.Writer, p Procedure) error {
	normalized, err := p.Normalized()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(normalized); err != nil {
		return fmt.Errorf("procedure: encode %s: %w", normalized.Nickname, err)
	}
	return enc.Close()
}

// Marshal encodes p as YAML bytes.
func Marshal(p Procedure) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
