// Package answersheet segments raw OCR transcripts of handwritten answer
// sheets into per-question answers.
package answersheet

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// markerPattern matches a line that starts a new answer: an optional run of
// non-alphanumeric noise, an OCR-confusable spelling of "Ans", optional
// punctuation, the question number, and optional inline answer text. The
// pattern must consume the whole line; mid-sentence occurrences of "ans" do
// not split answers.
var markerPattern = regexp.MustCompile(`(?i)^[^a-z0-9]*(ans|ams|axs|ars)[\s:!.\-]*([0-9]+)[\s:!.\-]*(.*)$`)

// Answer is one parsed answer keyed by its canonical label, e.g. "Ans3".
type Answer struct {
	Label string
	Text  string
}

// Answers is the parse result, ordered by ascending question number.
type Answers []Answer

// Get returns the answer text for a label, or the empty string when the
// student did not write that answer.
func (a Answers) Get(label string) string {
	for _, ans := range a {
		if ans.Label == label {
			return ans.Text
		}
	}
	return ""
}

// Parse splits an OCR transcript into labelled answers. Lines before the
// first marker are discarded, continuation lines are joined with single
// spaces, and the result is ordered by the numeric value of the question
// number. When the same number is marked twice, the first occurrence wins and
// later text for it is dropped; this mirrors the long-standing production
// behaviour and is relied on by stored transcripts.
func Parse(text string) Answers {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		parsed     = make(map[string]string)
		order      = make(map[string]int)
		currentKey string
		current    []string
		seen       int
	)

	finalize := func() {
		if currentKey == "" {
			return
		}
		if _, exists := parsed[currentKey]; exists {
			return
		}
		parsed[currentKey] = collapse(current)
		order[currentKey] = seen
		seen++
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}

		match := markerPattern.FindStringSubmatch(line)
		if match == nil {
			if currentKey != "" {
				current = append(current, line)
			}
			continue
		}

		finalize()

		currentKey = "Ans" + match[2]
		current = current[:0]
		if trailing := strings.TrimSpace(match[3]); trailing != "" {
			current = append(current, trailing)
		}
	}
	finalize()

	answers := make(Answers, 0, len(parsed))
	for label, text := range parsed {
		answers = append(answers, Answer{Label: label, Text: text})
	}

	sort.SliceStable(answers, func(i, j int) bool {
		ni, nj := labelNumber(answers[i].Label), labelNumber(answers[j].Label)
		if ni != nj {
			return ni < nj
		}
		return order[answers[i].Label] < order[answers[j].Label]
	})

	return answers
}

func collapse(lines []string) string {
	return strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
}

func labelNumber(label string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(label, "Ans"))
	return n
}
