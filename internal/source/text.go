package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	floorQuotes = strings.NewReplacer(
		"\u2019", "'",
		"\u00a0", " ",
		"\u201c", `"`,
		"\u201d", `"`,
	)
	runOfBlanks = regexp.MustCompile(`[ \t]+`)
)

// cleanFloorText normalizes a floor log paragraph: curly quotes become
// straight, runs of spaces collapse, single newlines become paragraph breaks.
func cleanFloorText(text string) string {
	text = floorQuotes.Replace(text)
	text = runOfBlanks.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\n", "\n\n")
	return strings.TrimSpace(text)
}

var (
	billWhitespace = regexp.MustCompile(`\s{2,}`)
	billRules      = regexp.MustCompile(`_{2,}`)
	billHyphenated = regexp.MustCompile(`(\w)-\s+(\w)`)
	billSpaces     = strings.NewReplacer("<all>", "", "\n", " ", "\t", " ")
	texQuotes      = strings.NewReplacer("``", `"`, "''", `"`)
)

// cleanBillText flattens the preformatted body of a bill version into a
// single searchable line.
func cleanBillText(text string) string {
	text = billSpaces.Replace(text)
	text = billWhitespace.ReplaceAllString(text, " ")
	text = texQuotes.Replace(text)
	text = billRules.ReplaceAllString(text, "")
	text = billHyphenated.ReplaceAllString(text, "$1$2")
	return strings.TrimSpace(text)
}

var (
	blockTag   = regexp.MustCompile(`(?i)</?(p|div)>`)
	anyTag     = regexp.MustCompile(`<[^>]+?>`)
	extraBreak = regexp.MustCompile(`\n{3,}\s*`)
)

// stripTags removes markup from GAO metadata, turning block elements into
// paragraph breaks.
func stripTags(text string) string {
	text = strings.TrimSpace(blockTag.ReplaceAllString(text, "\n\n"))
	text = anyTag.ReplaceAllString(text, "")
	text = extraBreak.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

// parseDate tries each layout in loc after dropping ordinal suffixes and
// collapsing whitespace.
func parseDate(value string, loc *time.Location, layouts ...string) (time.Time, bool) {
	value = strings.Join(strings.Fields(value), " ")
	value = ordinalSuffix.ReplaceAllString(value, "$1")
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ordinal renders 113 as "113th".
func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// midnight returns the start of t's day in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// uniq drops repeated strings, keeping first occurrences.
func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
