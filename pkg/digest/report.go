package digest

import (
	"strings"
	"unicode/utf8"
)

const reportBanner = "=== Feed Updates by Team ==="

// Render makes the plain text report, one section per team
func Render(r *Responses) string {
	var b strings.Builder
	b.WriteString("\n" + reportBanner + "\n\n")
	for _, team := range r.Teams() {
		header := "Team: " + team
		b.WriteString(header + "\n")
		b.WriteString(strings.Repeat("=", utf8.RuneCountInString(header)) + "\n")
		b.WriteString(strings.Join(r.Texts(team), "\n\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}
