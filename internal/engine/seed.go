package engine

import (
	"regexp"
	"strings"
)

// SeedPlaceholder is replaced in briefs and checks with the requester's seed.
const SeedPlaceholder = "${seed}"

// defaultSeed is used when the requester identity carries no digits.
const defaultSeed = "default"

const seedLength = 6

var nonDigits = regexp.MustCompile(`[^0-9]+`)

// DeriveSeed returns the first six digits of email in order of appearance,
// so "23f1002487@..." yields "231002". An identity without digits yields "default".
func DeriveSeed(email string) string {
	digits := nonDigits.ReplaceAllString(email, "")
	if digits == "" {
		return defaultSeed
	}
	if len(digits) > seedLength {
		digits = digits[:seedLength]
	}
	return digits
}

// SubstituteSeed replaces every placeholder occurrence in text with seed.
func SubstituteSeed(text, seed string) string {
	return strings.ReplaceAll(text, SeedPlaceholder, seed)
}

// substituteAll applies SubstituteSeed to each element, returning a new slice.
func substituteAll(items []string, seed string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = SubstituteSeed(s, seed)
	}
	return out
}
