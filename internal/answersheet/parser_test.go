package answersheet

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSplitsAnswersWithContinuationLines(t *testing.T) {
	input := "Ans1: Newton's first law\ncontinued text\nAns2 - F=ma"

	answers := Parse(input)

	require.Len(t, answers, 2)
	require.Equal(t, "Ans1", answers[0].Label)
	require.Equal(t, "Newton's first law continued text", answers[0].Text)
	require.Equal(t, "Ans2", answers[1].Label)
	require.Equal(t, "F=ma", answers[1].Text)
}

func TestParseRecognisesOCRConfusableMarkers(t *testing.T) {
	cases := map[string]string{
		"ans 1 alpha": "alpha",
		"Ams2. beta":  "beta",
		"AXS 3 gamma": "gamma",
		"ars4: delta": "delta",
		"**Ans5 eps":  "eps",
	}

	for line, want := range cases {
		answers := Parse(line)
		require.Len(t, answers, 1, "input %q", line)
		require.Equal(t, want, answers[0].Text, "input %q", line)
	}
}

func TestParseIgnoresMidSentenceMarkers(t *testing.T) {
	input := "Ans1 the plans were drawn\nthe answer is 42"

	answers := Parse(input)

	require.Len(t, answers, 1)
	require.Equal(t, "the plans were drawn the answer is 42", answers[0].Text)
}

func TestParseOrdersByNumericValue(t *testing.T) {
	input := "Ans10 tenth\nAns2 second\nAns1 first"

	answers := Parse(input)

	require.Len(t, answers, 3)
	require.Equal(t, []string{"Ans1", "Ans2", "Ans10"}, labels(answers))
}

func TestParseDiscardsPreambleBeforeFirstMarker(t *testing.T) {
	input := "Name: Jane Doe\nRoll 42\nAns1 hello"

	answers := Parse(input)

	require.Len(t, answers, 1)
	require.Equal(t, "hello", answers[0].Text)
}

func TestParseDuplicateMarkerFirstOccurrenceWins(t *testing.T) {
	input := "Ans1 original\nAns2 other\nAns1 rewrite attempt"

	answers := Parse(input)

	require.Len(t, answers, 2)
	require.Equal(t, "original", answers.Get("Ans1"))
	require.Equal(t, "other", answers.Get("Ans2"))
}

func TestParseMarkerWithNoTextYieldsEmptyAnswer(t *testing.T) {
	answers := Parse("Ans1")

	require.Len(t, answers, 1)
	require.Equal(t, "Ans1", answers[0].Label)
	require.Empty(t, answers[0].Text)
}

func TestParseBlankInput(t *testing.T) {
	require.Empty(t, Parse(""))
	require.Empty(t, Parse("  \n\t \r\n"))
}

func TestParseIdempotentOnRejoinedText(t *testing.T) {
	input := "Ans7   first   line\n  second line \nthird"

	first := Parse(input)
	require.Len(t, first, 1)

	rejoined := Parse("Ans7 " + first[0].Text)
	require.Len(t, rejoined, 1)
	require.Equal(t, first[0].Text, rejoined[0].Text)
}

func TestParseHandlesCRLFTranscripts(t *testing.T) {
	input := "Ans1 alpha\r\nbeta\r\nAns2 gamma\r\n"

	answers := Parse(input)

	require.Equal(t, "alpha beta", answers.Get("Ans1"))
	require.Equal(t, "gamma", answers.Get("Ans2"))
}

func TestAnswersGetMissingLabel(t *testing.T) {
	answers := Parse("Ans1 alpha")
	require.Equal(t, "", answers.Get("Ans9"))
}

func labels(answers Answers) []string {
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		out = append(out, a.Label)
	}
	return out
}

func TestParseLargeSheetStaysOrdered(t *testing.T) {
	var b strings.Builder
	for i := 30; i >= 1; i-- {
		b.WriteString("Ans")
		b.WriteString(strings.Repeat(" ", i%3))
		b.WriteString(strconv.Itoa(i))
		b.WriteString(" answer body\n")
	}

	answers := Parse(b.String())
	require.Len(t, answers, 30)
	for i, a := range answers {
		require.Equal(t, "Ans"+strconv.Itoa(i+1), a.Label)
	}
}
