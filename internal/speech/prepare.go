package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// TablaturePlaceholder replaces diagrams that make no sense read aloud.
const TablaturePlaceholder = "Confira a tablatura na tela."

var (
	fencedBlock = regexp.MustCompile("(?s)```.*?```")
	dashRun     = regexp.MustCompile(`-{2,}`)
	spaceRun    = regexp.MustCompile(`[ \t]+`)
	markupChars = strings.NewReplacer("*", "", "#", "", "_", "", "`", "", "~", "", ">", "", "|", " ")
)

// PrepareForSpeech turns an assistant reply into text worth synthesising:
// fenced blocks and tablature blocks become a placeholder, markup
// punctuation is stripped.
func PrepareForSpeech(text string) string {
	text = fencedBlock.ReplaceAllString(text, "\n"+TablaturePlaceholder+"\n")

	lines := strings.Split(text, "\n")
	var out []string
	for i := 0; i < len(lines); {
		if isTabLine(lines[i]) {
			j := i
			for j < len(lines) && isTabLine(lines[j]) {
				j++
			}
			if j-i >= 2 {
				out = append(out, TablaturePlaceholder)
				i = j
				continue
			}
		}
		out = append(out, lines[i])
		i++
	}

	var spoken []string
	for _, line := range out {
		line = markupChars.Replace(line)
		line = dashRun.ReplaceAllString(line, " ")
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		if line == TablaturePlaceholder && len(spoken) > 0 && spoken[len(spoken)-1] == TablaturePlaceholder {
			continue
		}
		spoken = append(spoken, line)
	}
	return strings.Join(spoken, "\n")
}

// isTabLine recognises one staff line of an ASCII tablature, e.g.
// "7 (C/B)|---3---5---|" or "E|--0--2--|".
func isTabLine(line string) bool {
	if !strings.Contains(line, "|") || strings.Count(line, "-") < 3 {
		return false
	}
	var letters, visible int
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return visible > 0 && letters*10 < visible*3
}
