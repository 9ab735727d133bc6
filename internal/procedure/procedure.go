package procedure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kingrea/lab-assistant/internal/validation"
)

// ErrNotFound is returned when a procedure reference matches nothing.
var ErrNotFound = errors.New("procedure: not found")

// Substep describes a repeating active/rest cycle nested inside a step, such
// as "agitate 10s, rest 50s". It runs for the life of the step, independently
// of the step's primary countdown.
type Substep struct {
	Title  string        `json:"title,omitempty" yaml:"title,omitempty"`
	Active time.Duration `json:"active" yaml:"active"`
	Rest   time.Duration `json:"rest" yaml:"rest"`
}

// Step is one stage of a procedure. Duration is the primary countdown; a nil
// Duration means the step is untimed.
type Step struct {
	Order       int            `json:"order" yaml:"order"`
	Title       string         `json:"title" yaml:"title" validate:"required"`
	Notes       string         `json:"notes,omitempty" yaml:"notes,omitempty"`
	Duration    *time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	AutoAdvance bool           `json:"auto_advance,omitempty" yaml:"auto_advance,omitempty"`
	Substep     *Substep       `json:"substep,omitempty" yaml:"substep,omitempty"`
	Chemicals   []string       `json:"chemicals,omitempty" yaml:"chemicals,omitempty"`
}

// HasSubstep reports whether the step carries a cycle that will actually run.
func (s Step) HasSubstep() bool {
	return s.Substep != nil && s.Substep.Active > 0
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	clone := s
	if s.Duration != nil {
		d := *s.Duration
		clone.Duration = &d
	}
	if s.Substep != nil {
		sub := *s.Substep
		clone.Substep = &sub
	}
	if len(s.Chemicals) > 0 {
		clone.Chemicals = append([]string(nil), s.Chemicals...)
	}
	return clone
}

// Procedure is an ordered sequence of steps, e.g. a film development recipe.
type Procedure struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Nickname string `json:"nickname" yaml:"nickname" validate:"required"`
	Notes    string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Steps    []Step `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// Clone returns a deep copy of the procedure.
func (p Procedure) Clone() Procedure {
	clone := Procedure{ID: p.ID, Nickname: p.Nickname, Notes: p.Notes}
	if len(p.Steps) > 0 {
		clone.Steps = make([]Step, len(p.Steps))
		for i, step := range p.Steps {
			clone.Steps[i] = step.Clone()
		}
	}
	return clone
}

// SortedSteps returns a copy of the steps ordered by Order.
func (p Procedure) SortedSteps() []Step {
	steps := p.Clone().Steps
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

// EstimatedDuration sums the primary durations. It returns nil when no step
// is timed.
func (p Procedure) EstimatedDuration() *time.Duration {
	var total time.Duration
	timed := false
	for _, step := range p.Steps {
		if step.Duration == nil {
			continue
		}
		timed = true
		total += *step.Duration
	}
	if !timed {
		return nil
	}
	return &total
}

// Renumber rewrites step orders to 0..N-1, keeping their relative order. The
// editor calls it after inserting, removing or moving steps.
func (p *Procedure) Renumber() {
	steps := p.SortedSteps()
	for i := range steps {
		steps[i].Order = i
	}
	p.Steps = steps
}

// Normalized trims text fields, sorts the steps and validates the result.
func (p Procedure) Normalized() (Procedure, error) {
	clone := p.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	clone.Nickname = strings.TrimSpace(clone.Nickname)
	clone.Notes = strings.TrimSpace(clone.Notes)
	for i := range clone.Steps {
		clone.Steps[i].Title = strings.TrimSpace(clone.Steps[i].Title)
		clone.Steps[i].Notes = strings.TrimSpace(clone.Steps[i].Notes)
	}
	clone.Steps = clone.SortedSteps()
	if err := clone.Validate(); err != nil {
		return Procedure{}, err
	}
	return clone, nil
}

// Validate reports every problem with the procedure as a single joined error.
func (p Procedure) Validate() error {
	problems := p.Problems()
	if len(problems) == 0 {
		return nil
	}
	name := p.Nickname
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Errorf("procedure %s: %w", name, errors.Join(problems...))
}

// Problems lists validation failures without joining them.
func (p Procedure) Problems() []error {
	problems := validation.Struct(p)
	if err := CheckOrder(p.Steps); err != nil && len(p.Steps) > 0 {
		problems = append(problems, err)
	}
	for i, step := range p.Steps {
		if err := CheckDurations(step); err != nil {
			problems = append(problems, fmt.Errorf("steps[%d]: %w", i, err))
		}
	}
	return problems
}

// CheckOrder verifies that step orders form the permutation 0..N-1.
func CheckOrder(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("no steps")
	}
	seen := make([]bool, len(steps))
	for i, step := range steps {
		if step.Order < 0 || step.Order >= len(steps) {
			return fmt.Errorf("steps[%d]: order %d outside 0..%d", i, step.Order, len(steps)-1)
		}
		if seen[step.Order] {
			return fmt.Errorf("steps[%d]: duplicate order %d", i, step.Order)
		}
		seen[step.Order] = true
	}
	return nil
}

// CheckDurations rejects negative primary or substep durations.
func CheckDurations(step Step) error {
	if step.Duration != nil && *step.Duration < 0 {
		return fmt.Errorf("duration %s is negative", *step.Duration)
	}
	if step.Substep != nil {
		if step.Substep.Active < 0 {
			return fmt.Errorf("substep active %s is negative", step.Substep.Active)
		}
		if step.Substep.Rest < 0 {
			return fmt.Errorf("substep rest %s is negative", step.Substep.Rest)
		}
	}
	return nil
}

// Seconds returns a pointer duration for step definitions.
func Seconds(n int) *time.Duration {
	d := time.Duration(n) * time.Second
	return &d
}

// Minutes returns a pointer duration for step definitions.
func Minutes(n int) *time.Duration {
	d := time.Duration(n) * time.Minute
	return &d
}
