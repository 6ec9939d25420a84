// Package textclean post-processes raw OCR output into text that is
// readable for humans and easy to ground small LLMs on.
package textclean

import (
	"regexp"
	"strings"
)

// Known OCR misreads observed on scanned policy documents. Applied as
// literal replacements before any structural cleanup.
var artifactReplacements = [][2]string{
	{"websitelapp", "website/app"},
	{"changelmodify", "change/modify"},
	{"whenan", "when an"},
	{"a8", "as"},
	{"S1O", "S10"},
	{"SI:", "S1."},
	{"S2 ", "S2. "},
	{"(e.g\"", "(e.g."},
	{"Depending o ", "Depending on "},
}

var (
	multiSpaceRe    = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforeRe   = regexp.MustCompile(`\s+([;:,.])`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	sectionMarkerRe = regexp.MustCompile(`[ \t]*(S\d+[.:])[ \t]*`)
	trailingColonRe = regexp.MustCompile(`:[ \t]*\n`)
	sectionLabelRe  = regexp.MustCompile(`^(S\d+)\.`)
	sectionStartRe  = regexp.MustCompile(`(?m)^S\d+\.`)
)

// Clean runs the full cleaning pipeline: artifact fixes, whitespace
// normalization, section splitting, punctuation fixes.
func Clean(raw string) string {
	if raw == "" {
		return raw
	}
	text := fixArtifacts(raw)
	text = normalizeWhitespace(text)
	text = splitIntoSections(text)
	text = fixPunctuation(text)
	return strings.TrimSpace(text)
}

func fixArtifacts(text string) string {
	for _, r := range artifactReplacements {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return text
}

func normalizeWhitespace(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = spaceBeforeRe.ReplaceAllString(text, "$1")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return text
}

// splitIntoSections puts each section marker (S1., S2:, ...) on its own
// paragraph so the document stays scannable after OCR flattened it.
func splitIntoSections(text string) string {
	text = sectionMarkerRe.ReplaceAllString(text, "\n\n$1 ")
	return blankLinesRe.ReplaceAllString(text, "\n\n")
}

// fixPunctuation repairs trailing colons that OCR produced where list
// items actually end with a period.
func fixPunctuation(text string) string {
	return trailingColonRe.ReplaceAllString(text, ".\n")
}

// Section is one labeled chunk of a cleaned document.
type Section struct {
	Label string
	Text  string
}

// Sections splits cleaned text into labeled chunks on section markers.
// Text before the first marker is labeled "Intro".
func Sections(text string) []Section {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	starts := sectionStartRe.FindAllStringIndex(cleaned, -1)
	if len(starts) == 0 {
		return []Section{{Label: "Intro", Text: cleaned}}
	}

	var out []Section
	if head := strings.TrimSpace(cleaned[:starts[0][0]]); head != "" {
		out = append(out, Section{Label: "Intro", Text: head})
	}
	for i, start := range starts {
		end := len(cleaned)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		part := strings.TrimSpace(cleaned[start[0]:end])
		if part == "" {
			continue
		}
		if m := sectionLabelRe.FindStringSubmatch(part); m != nil {
			out = append(out, Section{
				Label: m[1],
				Text:  strings.TrimSpace(part[len(m[0]):]),
			})
			continue
		}
		out = append(out, Section{Label: "Intro", Text: part})
	}
	return out
}
