package render

import (
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"strings"
)

// maxSummaryLength is the longest commit summary shown before it is cut
const maxSummaryLength = 80

var (
	spaceRuns = regexp.MustCompile(` +`)
	badgeTags = regexp.MustCompile(`</?(?:font|strong)(?: [^>]*)?>`)
	// inverse of markdownEscaper
	markdownEscapes = regexp.MustCompile("\\\\([\\\\`*_\\[\\]<>~])")

	markdownEscaper = strings.NewReplacer(
		`\`, `\\`,
		"`", "\\`",
		`*`, `\*`,
		`_`, `\_`,
		`[`, `\[`,
		`]`, `\]`,
		`<`, `\<`,
		`>`, `\>`,
		`~`, `\~`,
	)

	linkDestEscaper = strings.NewReplacer(
		`(`, `%28`,
		`)`, `%29`,
		` `, `%20`,
		`<`, `%3C`,
		`>`, `%3E`,
	)
)

// Pluralize returns "1 unit" or "n units"
func Pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatDuration spells out a number of seconds, e.g. "1 hour, 2 minutes and
// 3.5 seconds". Only the seconds may carry a fraction, rounded to a tenth.
func FormatDuration(seconds float64) string {
	tenths := int64(math.Round(math.Abs(seconds) * 10))
	whole, frac := tenths/10, tenths%10

	days := whole / 86400
	hours := whole % 86400 / 3600
	minutes := whole % 3600 / 60
	secs := whole % 60

	var parts []string
	if days > 0 {
		parts = append(parts, Pluralize(int(days), "day"))
	}
	if hours > 0 {
		parts = append(parts, Pluralize(int(hours), "hour"))
	}
	if minutes > 0 {
		parts = append(parts, Pluralize(int(minutes), "minute"))
	}
	switch {
	case frac > 0:
		parts = append(parts, fmt.Sprintf("%d.%d seconds", secs, frac))
	case secs > 0 || len(parts) == 0:
		parts = append(parts, Pluralize(int(secs), "second"))
	}
	return JoinHumanList(parts)
}

// JoinHumanList joins items as "a, b and c"
func JoinHumanList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// CutMessage summarizes a commit message to its first line. Long first lines
// are cut with an ellipsis; otherwise dropped lines are marked with " […]".
func CutMessage(message string) string {
	message = strings.TrimSpace(message)
	first, rest, multiline := strings.Cut(message, "\n")
	first = strings.TrimSpace(first)

	if runes := []rune(first); len(runes) > maxSummaryLength {
		return string(runes[:maxSummaryLength]) + "…"
	}
	if multiline && strings.TrimSpace(rest) != "" {
		return first + " […]"
	}
	return first
}

// BoldScope emphasizes the last segment of a scoped label, returning HTML:
// "scope::name" becomes "scope::<strong>name</strong>".
func BoldScope(label string) string {
	scope, name, found := cutLast(label, "::")
	if !found {
		return html.EscapeString(label)
	}
	return html.EscapeString(scope) + "::<strong>" + html.EscapeString(name) + "</strong>"
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// Escape backslash-escapes characters Markdown would otherwise interpret
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}

// Link renders a Markdown link, or the escaped text alone when target is
// empty or not an http(s) URL
func Link(text, target string) string {
	dest, ok := safeURL(target)
	if !ok {
		return Escape(text)
	}
	return fmt.Sprintf("[%s](%s)", Escape(text), dest)
}

// CodeLink is Link with the text shown as inline code
func CodeLink(text, target string) string {
	code := "`" + strings.ReplaceAll(text, "`", "'") + "`"
	dest, ok := safeURL(target)
	if !ok {
		return code
	}
	return fmt.Sprintf("[%s](%s)", code, dest)
}

// safeURL accepts absolute http and https URLs and encodes them for use as a
// Markdown link destination
func safeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	return linkDestEscaper.Replace(u.String()), true
}

// Normalize trims the text and collapses runs of spaces
func Normalize(text string) string {
	return spaceRuns.ReplaceAllString(strings.TrimSpace(text), " ")
}

// plainText is the fallback body: the Markdown source without label badges
// or backslash escapes
func plainText(markdown string) string {
	text := badgeTags.ReplaceAllString(markdown, "")
	text = markdownEscapes.ReplaceAllString(text, "$1")
	return html.UnescapeString(text)
}

// quote turns text into a Markdown block quote
func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}
