package sanitizer

import (
	"regexp"
	"strings"
)

const MaxMessageLength = 1000

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var reObjectID = regexp.MustCompile(`^[0-9a-f]{24}$`)

// SanitizeMessage cleans the note a guest sends the host with a booking request.
func SanitizeMessage(input string) string {
	p := Pipeline{
		StripControl,
		TrimAndNormalize,
		func(s string) string { return Truncate(s, MaxMessageLength) },
	}
	return p.Apply(input)
}

// SanitizeID lowercases a hex object id. Anything that is not one comes back trimmed only.
func SanitizeID(input string) string {
	s := strings.TrimSpace(input)
	if lowered := strings.ToLower(s); reObjectID.MatchString(lowered) {
		return lowered
	}
	return s
}
