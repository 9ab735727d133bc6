// Package inventory tracks darkroom chemicals: stock levels, expiry, tags and
// mixtures made from other stocked chemicals.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kingrea/lab-assistant/internal/validation"
)

var (
	// ErrNotFound is returned when a chemical or tag does not exist.
	ErrNotFound = errors.New("inventory: not found")
	// ErrInsufficient is returned when a deduction exceeds the current stock.
	ErrInsufficient = errors.New("inventory: insufficient stock")
	// ErrInvalid wraps field-level validation failures.
	ErrInvalid = errors.New("inventory: invalid")
)

// Unit is the measure a chemical is stocked in.
type Unit string

const (
	UnitMillilitre Unit = "ml"
	UnitLitre      Unit = "l"
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitOunce      Unit = "oz"
	UnitCount      Unit = "count"
)

// Units lists the accepted units in display order.
func Units() []Unit {
	return []Unit{UnitMillilitre, UnitLitre, UnitGram, UnitKilogram, UnitOunce, UnitCount}
}

// ParseUnit accepts a unit name case-insensitively.
func ParseUnit(s string) (Unit, error) {
	candidate := Unit(strings.ToLower(strings.TrimSpace(s)))
	for _, u := range Units() {
		if u == candidate {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: unknown unit %q", ErrInvalid, s)
}

// Chemical is one stocked bottle, bag or box.
type Chemical struct {
	ID        string     `yaml:"id" json:"id"`
	Nickname  string     `yaml:"nickname" json:"nickname" validate:"required"`
	Units     Unit       `yaml:"units" json:"units" validate:"oneof=ml l g kg oz count"`
	Max       float64    `yaml:"max" json:"max" validate:"gt=0"`
	Current   float64    `yaml:"current" json:"current" validate:"gte=0,ltefield=Max"`
	Expiry    *time.Time `yaml:"expiry,omitempty" json:"expiry,omitempty"`
	Notes     string     `yaml:"notes,omitempty" json:"notes,omitempty"`
	Tags      []Tag      `yaml:"tags,omitempty" json:"tags,omitempty" validate:"dive"`
	CreatedAt time.Time  `yaml:"created_at" json:"created_at"`
}

// Validate reports every field problem, wrapped in ErrInvalid.
func (c Chemical) Validate() error {
	c.Nickname = strings.TrimSpace(c.Nickname)
	errs := validation.Struct(c)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: chemical %q: %w", ErrInvalid, c.Nickname, errors.Join(errs...))
}

// Fraction is Current/Max, for gauges.
func (c Chemical) Fraction() float64 {
	if c.Max <= 0 {
		return 0
	}
	return c.Current / c.Max
}

// Expired reports whether the expiry date is at or before now.
func (c Chemical) Expired(now time.Time) bool {
	return c.Expiry != nil && !c.Expiry.After(now)
}

// ExpiresWithin reports whether the chemical is still good at now but
// expires before now+window.
func (c Chemical) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c.Expiry == nil || c.Expired(now) {
		return false
	}
	return c.Expiry.Before(now.Add(window))
}

// HasTag reports whether a tag with id is applied.
func (c Chemical) HasTag(id string) bool {
	for _, tag := range c.Tags {
		if tag.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c Chemical) Clone() Chemical {
	out := c
	if c.Expiry != nil {
		expiry := *c.Expiry
		out.Expiry = &expiry
	}
	if c.Tags != nil {
		out.Tags = append([]Tag(nil), c.Tags...)
	}
	return out
}

// SortByNickname orders chemicals alphabetically, ignoring case.
func SortByNickname(chems []Chemical) {
	sort.SliceStable(chems, func(i, j int) bool {
		return strings.ToLower(chems[i].Nickname) < strings.ToLower(chems[j].Nickname)
	})
}

// Component is one ingredient of a mixture.
type Component struct {
	ChemicalID string  `yaml:"chemical_id" json:"chemical_id" validate:"required"`
	Amount     float64 `yaml:"amount" json:"amount" validate:"gt=0"`
}
