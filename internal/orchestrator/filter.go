package orchestrator

// #region imports
import (
	"regexp"
	"sort"
	"strings"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
)

// #endregion

// #region filter

var (
	runOfBlanks     = regexp.MustCompile(`[ \t]{2,}`)
	blankBeforePunc = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	emptyBrackets   = regexp.MustCompile(`[\[(]\s*[\])]`)
)

// LeakFilter removes rubric vocabulary (band ids and command tokens) from
// learner-facing text.
type LeakFilter struct {
	bracketed *regexp.Regexp
	bands     *regexp.Regexp
	commands  *regexp.Regexp
}

// NewLeakFilter compiles the vocabulary of a catalog.
func NewLeakFilter(cat *rubric.Catalog) *LeakFilter {
	bands := sortedKeys(cat.AllBandIDs())
	tokens := sortedKeys(cat.AllCommandTokens())

	var alts []string
	for _, b := range bands {
		alts = append(alts, regexp.QuoteMeta(b))
	}
	var cmdAlts []string
	for _, t := range tokens {
		cmdAlts = append(cmdAlts, regexp.QuoteMeta(t))
	}

	f := &LeakFilter{}
	all := append(append([]string(nil), alts...), cmdAlts...)
	if len(all) > 0 {
		f.bracketed = regexp.MustCompile(`(?i)[\[(]\s*(?:` + strings.Join(all, "|") + `)\s*[\])]`)
	}
	if len(alts) > 0 {
		f.bands = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	}
	if len(cmdAlts) > 0 {
		f.commands = regexp.MustCompile(`(?i)(^|[^\w/])(?:` + strings.Join(cmdAlts, "|") + `)\b`)
	}
	return f
}

// Filter strips every known band id and command token as a whole token or
// inside [..] / (..), then collapses the leftover whitespace.
func (f *LeakFilter) Filter(text string) string {
	if f.bracketed != nil {
		text = f.bracketed.ReplaceAllString(text, "")
	}
	if f.commands != nil {
		text = f.commands.ReplaceAllString(text, "${1}")
	}
	if f.bands != nil {
		text = f.bands.ReplaceAllString(text, "")
	}
	text = emptyBrackets.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = runOfBlanks.ReplaceAllString(line, " ")
		line = blankBeforePunc.ReplaceAllString(line, "$1")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// #endregion

// #region helpers

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	// Longest first so "/samenvatting" wins over a shorter prefix token.
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// #endregion
