// Package comment builds the scan report body posted to issues and pull requests.
// The layout is fixed: one report heading, one Security section, and the raw
// scan output appended verbatim.
package comment

import "strings"

// Report lines, in the order they appear in the body.
const (
	Heading         = "# Scan Results"
	SecurityHeading = "## Security"
	SecurityLabel   = "Security scan: "
)

// Lines returns the ordered body lines for the given scan output.
func Lines(content []byte) []string {
	lines := []string{
		Heading,
		SecurityHeading,
		"",
	}
	security := []string{
		"",
		SecurityLabel,
		string(content),
	}
	return append(lines, security...)
}

// Compose joins the report lines with newlines. The scan content is the
// suffix of the result, unmodified.
func Compose(content []byte) string {
	return strings.Join(Lines(content), "\n")
}

