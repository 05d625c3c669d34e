package phase

import (
	"errors"
	"fmt"
)

// ErrInvalidAgeBracket is returned when a value outside the closed bracket
// set reaches the resolver. Conforming callers validate first, so hitting
// this is a programming error on their side.
var ErrInvalidAgeBracket = errors.New("invalid age bracket")

// AgeBracket is the user's self-reported age range. It selects which
// chapters the interview walks through.
type AgeBracket string

const (
	Under18   AgeBracket = "under_18"
	Age18To30 AgeBracket = "18_30"
	Age31To45 AgeBracket = "31_45"
	Age46To60 AgeBracket = "46_60"
	Age61Plus AgeBracket = "61_plus"
)

// Brackets lists every age bracket.
var Brackets = []AgeBracket{Under18, Age18To30, Age31To45, Age46To60, Age61Plus}

// IsValid reports whether b is a member of the closed bracket set.
func (b AgeBracket) IsValid() bool {
	switch b {
	case Under18, Age18To30, Age31To45, Age46To60, Age61Plus:
		return true
	}
	return false
}

// Chapter subsequences per bracket. Younger brackets omit phases the user
// has not lived yet. The GREETING/AGE_SELECTION prefix and SYNTHESIS suffix
// are fixed and added by Resolve.
var bracketChapters = map[AgeBracket][]Phase{
	Under18:   {FamilyHistory, Childhood, Adolescence, Present},
	Age18To30: {FamilyHistory, Childhood, Adolescence, EarlyAdulthood, Present},
	Age31To45: {FamilyHistory, Childhood, Adolescence, EarlyAdulthood, Midlife, Present},
	Age46To60: {FamilyHistory, Childhood, Adolescence, EarlyAdulthood, Midlife, Present},
	Age61Plus: {FamilyHistory, Childhood, Adolescence, EarlyAdulthood, Midlife, Present},
}

// Resolve returns the full phase order for a bracket:
// GREETING, AGE_SELECTION, the bracket's chapters, SYNTHESIS.
func Resolve(b AgeBracket) ([]Phase, error) {
	chapters, ok := bracketChapters[b]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAgeBracket, b)
	}
	order := make([]Phase, 0, len(chapters)+3)
	order = append(order, Greeting, AgeSelection)
	order = append(order, chapters...)
	order = append(order, Synthesis)
	return order, nil
}
