package slug

import "regexp"

// MaxLength keeps a slug usable as a single DNS label, so a store slug can
// also be its storefront subdomain.
const MaxLength = 63

var valid = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Valid reports whether s is a slug: lower case ASCII letters and digits
// separated by single hyphens, at most MaxLength long.
//
// Examples:
//   - "acme-outdoor" is valid
//   - "Acme", "acme--outdoor" and "-acme" are not
func Valid(s string) bool {
	return len(s) <= MaxLength && valid.MatchString(s)
}
