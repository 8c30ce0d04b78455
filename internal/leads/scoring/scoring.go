// Package scoring computes a lead's qualification score from conversation
// signal. Scores are recomputed on every message append and merged into the
// lead record via max, so they never regress.
package scoring

// Input captures the signals a score is derived from. Each field contributes
// monotonically: more signal never lowers the score.
type Input struct {
	HasEmail       bool
	HasPhone       bool
	InboundCount   int
	KeywordMatches int
	GoalsCompleted int
	GoalsRequired  int
}

const (
	contactWeight    = 10
	engagementWeight = 8
	engagementCap    = 40
	keywordWeight    = 10
	keywordCap       = 20
	goalsCap         = 20
)

// Compute returns a score in [0, 100].
func Compute(in Input) int {
	score := 0

	if in.HasEmail {
		score += contactWeight
	}
	if in.HasPhone {
		score += contactWeight
	}

	engagement := in.InboundCount * engagementWeight
	if engagement > engagementCap {
		engagement = engagementCap
	}
	score += engagement

	keywords := in.KeywordMatches * keywordWeight
	if keywords > keywordCap {
		keywords = keywordCap
	}
	score += keywords

	if in.GoalsRequired > 0 {
		completed := in.GoalsCompleted
		if completed > in.GoalsRequired {
			completed = in.GoalsRequired
		}
		score += completed * goalsCap / in.GoalsRequired
	}

	if score > 100 {
		score = 100
	}
	return score
}
