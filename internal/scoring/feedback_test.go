package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedbackRuleOrder(t *testing.T) {
	cases := []struct {
		name                               string
		entailment, neutral, contradiction float64
		wants                              string
	}{
		{"high entailment wins regardless of other signals", 0.9, 0.9, 0.9, "Excellent understanding"},
		{"good effort band", 0.7, 0.3, 0.0, "Good effort"},
		{"mostly neutral", 0.1, 0.6, 0.1, "lacks completeness"},
		{"relevant but conflicting", 0.1, 0.4, 0.4, "conflicting information"},
		{"strong contradiction", 0.0, 0.1, 0.7, "contradicts the key ideas"},
		{"all signals weak", 0.1, 0.1, 0.1, "unclear or off-topic"},
		{"mixed fallthrough", 0.5, 0.1, 0.4, "Mixed response"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Feedback(tc.entailment, tc.neutral, tc.contradiction)
			require.Contains(t, got, tc.wants)
		})
	}
}

func TestFeedbackBoundariesAreExclusive(t *testing.T) {
	// 0.85 exactly must not trigger the excellent rule.
	got := Feedback(0.85, 0.25, 0)
	require.False(t, strings.Contains(got, "Excellent understanding"))
	require.Contains(t, got, "Good effort")

	// neutral exactly 0.5 falls through rule three.
	got = Feedback(0.1, 0.5, 0.4)
	require.Contains(t, got, "conflicting information")
}
