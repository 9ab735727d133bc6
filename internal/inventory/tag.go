package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/lab-assistant/internal/validation"
)

// DefaultTagColor is used when a tag is created without a colour.
const DefaultTagColor = "#9E9E9E"

// Tag labels chemicals, e.g. "B&W" or "C-41".
type Tag struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title" validate:"required"`
	Color string `yaml:"color" json:"color" validate:"omitempty,hexcolor"`
}

// Validate reports every field problem, wrapped in ErrInvalid.
func (t Tag) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	errs := validation.Struct(t)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: tag %q: %w", ErrInvalid, t.Title, errors.Join(errs...))
}

func (t Tag) normalized() Tag {
	t.Title = strings.TrimSpace(t.Title)
	t.Color = strings.ToUpper(strings.TrimSpace(t.Color))
	if t.Color == "" {
		t.Color = DefaultTagColor
	}
	return t
}
