package handover

import (
	"strings"
	"testing"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
)

func targetOne(string) int { return 1 }

func TestNoCriteriaConfiguredNeverTriggers(t *testing.T) {
	triggered, reason := checkCriteria(campaigns.HandoverCriteria{}, snapshot{
		Score:        100,
		MessageCount: 50,
		GoalTarget:   targetOne,
		Elapsed:      time.Hour,
	})
	if triggered {
		t.Fatalf("triggered with no criteria configured, reason %q", reason)
	}
}

func TestScoreThresholdTriggers(t *testing.T) {
	criteria := campaigns.HandoverCriteria{ScoreThreshold: 7}

	triggered, reason := checkCriteria(criteria, snapshot{Score: 7, GoalTarget: targetOne})
	if !triggered {
		t.Fatal("score equal to threshold must trigger")
	}
	if reason != "qualification_score" {
		t.Fatalf("reason = %q, want qualification_score", reason)
	}

	triggered, _ = checkCriteria(criteria, snapshot{Score: 6, GoalTarget: targetOne})
	if triggered {
		t.Fatal("score below threshold must not trigger")
	}
}

func TestReasonContainsEveryCriterionThatHolds(t *testing.T) {
	criteria := campaigns.HandoverCriteria{
		ScoreThreshold:   50,
		LengthThreshold:  4,
		KeywordTriggers:  []string{"ready to buy", "financing"},
		RequiredGoals:    []string{"test_drive"},
		TimeThresholdMin: 30,
	}
	s := snapshot{
		Score:        80,
		MessageCount: 10,
		InboundTexts: []string{"I'm READY TO BUY today", "what about financing?"},
		GoalProgress: map[string]int{"test_drive": 1},
		GoalTarget:   targetOne,
		Elapsed:      time.Hour,
	}

	triggered, reason := checkCriteria(criteria, s)
	if !triggered {
		t.Fatal("all criteria hold, must trigger")
	}
	want := "qualification_score, conversation_length, keyword_triggers: ready to buy, financing, goals_completed, time_threshold"
	if reason != want {
		t.Fatalf("reason = %q\nwant   %q", reason, want)
	}
}

func TestKeywordMatchIsCaseInsensitiveSubstring(t *testing.T) {
	criteria := campaigns.HandoverCriteria{KeywordTriggers: []string{"Trade-In"}}

	triggered, reason := checkCriteria(criteria, snapshot{
		InboundTexts: []string{"do you take a trade-in?"},
		GoalTarget:   targetOne,
	})
	if !triggered {
		t.Fatal("case-insensitive substring match must trigger")
	}
	if !strings.Contains(reason, "keyword_triggers: Trade-In") {
		t.Fatalf("reason = %q", reason)
	}
}

func TestKeywordsOnlyMatchInboundContent(t *testing.T) {
	criteria := campaigns.HandoverCriteria{KeywordTriggers: []string{"financing"}}

	// Agent messages mentioning the trigger are not in InboundTexts and must
	// not count.
	triggered, _ := checkCriteria(criteria, snapshot{
		InboundTexts: []string{"just looking around"},
		GoalTarget:   targetOne,
	})
	if triggered {
		t.Fatal("trigger word absent from inbound content must not fire")
	}
}

func TestRequiredGoalsMustAllReachTarget(t *testing.T) {
	criteria := campaigns.HandoverCriteria{RequiredGoals: []string{"test_drive", "credit_check"}}

	triggered, _ := checkCriteria(criteria, snapshot{
		GoalProgress: map[string]int{"test_drive": 1},
		GoalTarget:   targetOne,
	})
	if triggered {
		t.Fatal("one incomplete required goal must block the goals criterion")
	}

	triggered, reason := checkCriteria(criteria, snapshot{
		GoalProgress: map[string]int{"test_drive": 1, "credit_check": 2},
		GoalTarget:   targetOne,
	})
	if !triggered || reason != "goals_completed" {
		t.Fatalf("triggered = %v, reason = %q", triggered, reason)
	}
}

func TestTimeThreshold(t *testing.T) {
	criteria := campaigns.HandoverCriteria{TimeThresholdMin: 30}

	triggered, _ := checkCriteria(criteria, snapshot{Elapsed: 29 * time.Minute, GoalTarget: targetOne})
	if triggered {
		t.Fatal("under the time threshold must not trigger")
	}
	triggered, reason := checkCriteria(criteria, snapshot{Elapsed: 31 * time.Minute, GoalTarget: targetOne})
	if !triggered || reason != "time_threshold" {
		t.Fatalf("triggered = %v, reason = %q", triggered, reason)
	}
}
