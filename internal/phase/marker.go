package phase

import "strings"

const (
	markerPrefix = "[Moving to next phase: "
	markerSuffix = "]"
)

// TransitionMarker formats the in-band marker appended to the message log
// when the interview moves to a new phase. The generator is stateless per
// call, so the marker is the only evidence of the change it can see.
func TransitionMarker(to Phase) string {
	return markerPrefix + string(to) + markerSuffix
}

// ParseTransitionMarker recovers the target phase from a marker message.
// Returns false for anything that is not a well-formed marker for a known
// phase.
func ParseTransitionMarker(content string) (Phase, bool) {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, markerPrefix) || !strings.HasSuffix(s, markerSuffix) {
		return "", false
	}
	p := Phase(s[len(markerPrefix) : len(s)-len(markerSuffix)])
	if !p.IsValid() {
		return "", false
	}
	return p, true
}

// IsTransitionMarker reports whether a message content is a transition
// marker. Used to keep markers out of generated snippet transcripts.
func IsTransitionMarker(content string) bool {
	_, ok := ParseTransitionMarker(content)
	return ok
}
