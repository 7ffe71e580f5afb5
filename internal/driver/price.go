package driver

import (
	"regexp"
	"strings"
)

var (
	amountRe   = regexp.MustCompile(`\d+(?:[.,\s]\d+)*`)
	freeWordRe = regexp.MustCompile(`(?i)\b(free|gratis|gratuit|kostenlos)\b|ücretsiz`)
)

// IsZeroPrice reports whether a checkout total is unambiguously zero: every
// number in text is zero, or there are no digits at all and a free-of-charge
// word appears. Anything else, including discount badges, is not zero.
func IsZeroPrice(text string) bool {
	text = strings.ReplaceAll(text, "\u00a0", " ")

	amounts := amountRe.FindAllString(text, -1)
	if len(amounts) == 0 {
		return freeWordRe.MatchString(text)
	}
	for _, a := range amounts {
		for _, r := range a {
			if r >= '1' && r <= '9' {
				return false
			}
		}
	}
	return true
}
