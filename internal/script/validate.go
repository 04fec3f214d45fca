package script

import (
	"errors"
	"fmt"
)

// Validate checks a [Script] for required fields.
//
// Rules:
//   - The script id must be non-empty.
//   - Every part must have a non-empty, unique id and a non-empty title.
//
// All violations are reported together.
func Validate(s *Script) error {
	if s == nil {
		return errors.New("script must not be nil")
	}

	var errs []error
	if s.Meta.ID == "" {
		errs = append(errs, errors.New("script.id must not be empty"))
	}

	seen := make(map[string]int, len(s.Parts))
	for i, p := range s.Parts {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("parts[%d]: id must not be empty", i))
		} else if first, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("parts[%d]: duplicate id %q (first used at parts[%d])", i, p.ID, first))
		} else {
			seen[p.ID] = i
		}
		if p.Title == "" {
			errs = append(errs, fmt.Errorf("parts[%d]: title must not be empty", i))
		}
	}

	return errors.Join(errs...)
}
