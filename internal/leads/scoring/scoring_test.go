package scoring

import "testing"

func TestComputeBounds(t *testing.T) {
	if got := Compute(Input{}); got != 0 {
		t.Fatalf("empty signal scored %d, want 0", got)
	}

	full := Input{
		HasEmail:       true,
		HasPhone:       true,
		InboundCount:   100,
		KeywordMatches: 100,
		GoalsCompleted: 10,
		GoalsRequired:  3,
	}
	if got := Compute(full); got != 100 {
		t.Fatalf("saturated signal scored %d, want 100", got)
	}
}

func TestComputeIsMonotone(t *testing.T) {
	base := Input{HasEmail: true, InboundCount: 2, KeywordMatches: 1, GoalsCompleted: 1, GoalsRequired: 3}
	baseScore := Compute(base)

	cases := []struct {
		name string
		in   Input
	}{
		{"more replies", Input{HasEmail: true, InboundCount: 3, KeywordMatches: 1, GoalsCompleted: 1, GoalsRequired: 3}},
		{"more keywords", Input{HasEmail: true, InboundCount: 2, KeywordMatches: 2, GoalsCompleted: 1, GoalsRequired: 3}},
		{"more goals", Input{HasEmail: true, InboundCount: 2, KeywordMatches: 1, GoalsCompleted: 2, GoalsRequired: 3}},
		{"phone added", Input{HasEmail: true, HasPhone: true, InboundCount: 2, KeywordMatches: 1, GoalsCompleted: 1, GoalsRequired: 3}},
	}
	for _, tc := range cases {
		if got := Compute(tc.in); got < baseScore {
			t.Fatalf("%s: score regressed from %d to %d", tc.name, baseScore, got)
		}
	}
}

func TestComputeGoalRatio(t *testing.T) {
	half := Compute(Input{GoalsCompleted: 1, GoalsRequired: 2})
	all := Compute(Input{GoalsCompleted: 2, GoalsRequired: 2})
	if half != 10 || all != 20 {
		t.Fatalf("goal contribution = (%d, %d), want (10, 20)", half, all)
	}
}
