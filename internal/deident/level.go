// Package deident implements the de-identification engine: a pure
// text-transformation pipeline that detects personally identifying
// substrings with fixed patterns and replaces them with category-tagged,
// sequentially numbered tokens.
package deident

import (
	"errors"
	"fmt"
)

// Level is the de-identification strictness tier. The set is closed: an
// unrecognized level is a parse error, it can never silently fall through.
type Level int

const (
	// LevelMinimal removes only health-insurance, national-ID and
	// payment-card style numbers.
	LevelMinimal Level = iota
	// LevelFederal adds names, emails and phone numbers.
	LevelFederal
	// LevelRegional adds postal codes, street addresses, financial data and
	// date generalization (dates are generalized, not removed, to preserve
	// temporal utility).
	LevelRegional
	// LevelFullAnonymous adds exhaustive date removal and location names;
	// the result contains no detectable identifier of any supported category.
	LevelFullAnonymous
)

var ErrUnknownLevel = errors.New("unknown de-identification level")

var levelNames = map[Level]string{
	LevelMinimal:       "minimal",
	LevelFederal:       "federal",
	LevelRegional:      "regional",
	LevelFullAnonymous: "full_anonymous",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a textual level name into a Level.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}
