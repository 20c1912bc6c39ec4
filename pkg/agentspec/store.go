package agentspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arcanumlabs/canary/pkg/gate"
)

// Store is a read-through view over a directory of agent spec YAML files.
// It holds no state beyond the directory path: every Get and List re-reads
// and re-validates from disk.
type Store struct {
	dir string
}

// NewStore creates a store over the given spec directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the spec directory path.
func (s *Store) Dir() string {
	return s.dir
}

// ValidationError carries the full verdict for a spec that failed
// validation, so callers can surface every violation at once.
type ValidationError struct {
	Name    string
	Verdict gate.Verdict
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("agent spec %s failed validation: %s",
		e.Name, strings.Join(e.Verdict.ReasonStrings(), "; "))
}

// Get loads, parses, and validates the named agent's spec.
// Returns NotFoundError if the file doesn't exist and ValidationError if
// the spec fails any schema or security check.
func (s *Store) Get(name string) (*AgentSpec, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		raw, err = os.ReadFile(filepath.Join(s.dir, name+".yml"))
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("reading agent spec %s: %w", name, err)
	}

	return s.parse(name, raw)
}

// List loads every valid spec in the directory, ordered by name.
// Invalid specs are skipped; use Verify to see their violations.
func (s *Store) List() ([]*AgentSpec, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	specs := make([]*AgentSpec, 0, len(names))
	for _, name := range names {
		spec, err := s.Get(name)
		if err != nil {
			var invalid ValidationError
			if errors.As(err, &invalid) {
				continue
			}
			return nil, err
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

// Verify validates every spec file in the directory and returns the verdict
// for each, ordered by name. Unlike List it keeps the failures.
func (s *Store) Verify() (map[string]gate.Verdict, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	verdicts := make(map[string]gate.Verdict, len(names))
	for _, name := range names {
		_, err := s.Get(name)
		if err == nil {
			verdicts[name] = gate.NewVerdict(0, nil)
			continue
		}

		var invalid ValidationError
		if errors.As(err, &invalid) {
			verdicts[name] = invalid.Verdict
			continue
		}
		return nil, err
	}

	return verdicts, nil
}

// parse unmarshals and validates raw spec content, including the static
// security scan over the raw bytes.
func (s *Store) parse(name string, raw []byte) (*AgentSpec, error) {
	var spec AgentSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, ValidationError{
			Name: name,
			Verdict: gate.NewVerdict(0, []gate.Reason{{
				Kind:    gate.KindSchemaViolation,
				Message: fmt.Sprintf("invalid YAML: %v", err),
			}}),
		}
	}

	verdict := Validate(&spec)
	reasons := verdict.Reasons

	for _, finding := range SecurityFindings(raw) {
		reasons = append(reasons, gate.Reason{
			Kind:    gate.KindSecurityViolation,
			Message: finding,
		})
	}

	if spec.Name != "" && spec.Name != name {
		reasons = append(reasons, gate.Reason{
			Kind:    gate.KindSchemaViolation,
			Message: fmt.Sprintf("spec name %q does not match file name %q", spec.Name, name),
		})
	}

	if len(reasons) > 0 {
		return nil, ValidationError{Name: name, Verdict: gate.NewVerdict(0, reasons)}
	}

	return &spec, nil
}

// names returns the sorted agent names present in the directory.
func (s *Store) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading spec directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}

	sort.Strings(names)
	return names, nil
}
