// Package phase defines the interview phase vocabulary: the fixed set of
// phases, per-age-bracket phase orders, and the in-band transition marker
// written to the message log when the interview moves between chapters.
package phase

// Phase identifies one stage of the guided interview.
type Phase string

const (
	Greeting       Phase = "GREETING"
	AgeSelection   Phase = "AGE_SELECTION"
	FamilyHistory  Phase = "FAMILY_HISTORY"
	Childhood      Phase = "CHILDHOOD"
	Adolescence    Phase = "ADOLESCENCE"
	EarlyAdulthood Phase = "EARLY_ADULTHOOD"
	Midlife        Phase = "MIDLIFE"
	Present        Phase = "PRESENT"
	Synthesis      Phase = "SYNTHESIS"
)

// All lists every phase in chronological order.
var All = []Phase{
	Greeting,
	AgeSelection,
	FamilyHistory,
	Childhood,
	Adolescence,
	EarlyAdulthood,
	Midlife,
	Present,
	Synthesis,
}

type catalogEntry struct {
	label    string
	ageRange string // default age annotation, empty if not applicable
}

var catalog = map[Phase]catalogEntry{
	Greeting:       {label: "Welcome"},
	AgeSelection:   {label: "Age Selection"},
	FamilyHistory:  {label: "Family History"},
	Childhood:      {label: "Childhood", ageRange: "Ages 0-12"},
	Adolescence:    {label: "Adolescence", ageRange: "Ages 13-17"},
	EarlyAdulthood: {label: "Early Adulthood", ageRange: "Ages 18-30"},
	Midlife:        {label: "Midlife", ageRange: "Ages 31-60"},
	Present:        {label: "Present Day"},
	Synthesis:      {label: "Reflection"},
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	_, ok := catalog[p]
	return ok
}

// Label returns the default human-readable label for the phase.
// Unknown phases fall back to their raw identifier.
func (p Phase) Label() string {
	if e, ok := catalog[p]; ok {
		return e.label
	}
	return string(p)
}

// AgeRange returns the default age annotation for the phase, or "" when the
// phase has none (GREETING, PRESENT, ...).
func (p Phase) AgeRange() string {
	return catalog[p].ageRange
}

// IsChapter reports whether the phase is a user-facing chapter: an interview
// phase that can be renamed, jumped to, and that snippets attach to.
// GREETING, AGE_SELECTION, and SYNTHESIS are not chapters.
func (p Phase) IsChapter() bool {
	switch p {
	case Greeting, AgeSelection, Synthesis:
		return false
	}
	return p.IsValid()
}

// Chapters lists the chapter phases in chronological order.
func Chapters() []Phase {
	out := make([]Phase, 0, len(All))
	for _, p := range All {
		if p.IsChapter() {
			out = append(out, p)
		}
	}
	return out
}
