package services

import (
	"context"
	"reflect"
	"testing"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

func newHeuristicMetrics(t *testing.T) KeywordMetricsService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	return NewKeywordMetricsService(log, nil)
}

func TestHeuristicMetricsSourceName(t *testing.T) {
	svc := newHeuristicMetrics(t)
	if svc.UsesLiveData() {
		t.Fatalf("no ads client configured, UsesLiveData must be false")
	}
	if svc.SourceName() != "heuristic estimation" {
		t.Fatalf("source name: got %q", svc.SourceName())
	}
}

func TestHeuristicMetricsAreDeterministic(t *testing.T) {
	svc := newHeuristicMetrics(t)
	in := []types.DiscoveredKeyword{{Term: "best running shoes", Sources: []string{"expansion"}}}

	first, err := svc.Calculate(context.Background(), in)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	second, err := svc.Calculate(context.Background(), in)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !reflect.DeepEqual(first[0], second[0]) {
		t.Fatalf("same term must score identically: %+v vs %+v", first[0], second[0])
	}
}

func TestHeuristicMetricsScoreEveryKeyword(t *testing.T) {
	svc := newHeuristicMetrics(t)
	in := []types.DiscoveredKeyword{
		{Term: "running shoes"},
		{Term: "how to choose trail running shoes for beginners"},
	}
	out, err := svc.Calculate(context.Background(), in)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("every discovered keyword gets metrics: want=%d got=%d", len(in), len(out))
	}
	for _, kw := range out {
		if kw.Volume <= 0 {
			t.Fatalf("volume must be positive for %q", kw.Term)
		}
		if kw.Difficulty <= 0 || kw.Difficulty > 95 {
			t.Fatalf("difficulty out of range for %q: %v", kw.Term, kw.Difficulty)
		}
		if kw.Opportunity <= 0 {
			t.Fatalf("opportunity must be positive for %q", kw.Term)
		}
	}
}

func TestIntentClassification(t *testing.T) {
	cases := []struct {
		term string
		want string
	}{
		{"buy running shoes", types.IntentTransactional},
		{"running shoes coupon", types.IntentTransactional},
		{"best running shoes", types.IntentCommercial},
		{"nike vs adidas", types.IntentCommercial},
		{"nike login", types.IntentNavigational},
		{"how to lace running shoes", types.IntentInformational},
	}
	for _, tc := range cases {
		if got := classifyIntent(tc.term); got != tc.want {
			t.Fatalf("intent(%q): want=%v got=%v", tc.term, tc.want, got)
		}
	}
}

func TestOpportunityScoreFavorsEasyHighVolume(t *testing.T) {
	easy := opportunityScore(10000, 20)
	hard := opportunityScore(10000, 80)
	if easy <= hard {
		t.Fatalf("lower difficulty should score higher: easy=%v hard=%v", easy, hard)
	}
	big := opportunityScore(10000, 50)
	small := opportunityScore(100, 50)
	if big <= small {
		t.Fatalf("higher volume should score higher: big=%v small=%v", big, small)
	}
}
