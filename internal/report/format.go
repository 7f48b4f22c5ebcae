package report

import (
	"fmt"
	"regexp"
	"strings"

	"CuboTrack/internal/model"
)

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9\-_]+`)
	slugUnderscore = regexp.MustCompile(`_+`)
)

// Slug turns an operator name into a file name.
func Slug(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		s = model.Unassigned
	}
	s = strings.ToLower(s)
	s = slugInvalid.ReplaceAllString(s, "_")
	s = slugUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return strings.ToLower(model.Unassigned)
	}
	return s
}

// Slugs returns one file name per operator, in order. A slug already taken
// by an earlier operator of the same report gets a numeric suffix.
func Slugs(ops []*model.OperatorReport) []string {
	taken := make(map[string]bool, len(ops))
	out := make([]string, len(ops))
	for i, op := range ops {
		base := Slug(op.Name)
		slug := base
		for n := 2; taken[slug]; n++ {
			slug = fmt.Sprintf("%s_%d", base, n)
		}
		taken[slug] = true
		out[i] = slug
	}
	return out
}

// FormatMs renders a duration in milliseconds; 0 and below mean unknown.
func FormatMs(ms int64) string {
	switch {
	case ms <= 0:
		return "-"
	case ms < 1000:
		return fmt.Sprintf("%d ms", ms)
	default:
		return fmt.Sprintf("%.2f s", float64(ms)/1000)
	}
}

func formatHz(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f Hz", *v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"|", `\|`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
)

// mdText escapes s for use as inline markdown text.
func mdText(s string) string {
	return mdEscaper.Replace(s)
}
