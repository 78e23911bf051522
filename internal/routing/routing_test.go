package routing_test

import (
	"testing"

	"jurybox/internal/routing"
)

var testRewards = routing.Rewards{Low: 10, Medium: 25, High: 50}

func TestWorkerQuotaSteps(t *testing.T) {
	cases := []struct {
		importance int
		workers    int
	}{
		{1, 1}, {32, 1}, {33, 3}, {50, 3}, {65, 3}, {66, 5}, {100, 5},
	}
	for _, c := range cases {
		res, err := routing.Compute(c.importance, 10, testRewards)
		if err != nil {
			t.Fatalf("importance %d: %v", c.importance, err)
		}
		if res.RequiredWorkers != c.workers {
			t.Fatalf("importance %d: got %d workers, want %d", c.importance, res.RequiredWorkers, c.workers)
		}
	}
}

func TestNeverOverspend(t *testing.T) {
	budgets := []float64{0, 0.01, 0.29, 0.58, 1, 3.33, 7.77, 10, 99.99, 1234.56}
	for importance := 1; importance <= 100; importance++ {
		for _, budget := range budgets {
			res, err := routing.Compute(importance, budget, testRewards)
			if err != nil {
				t.Fatalf("importance %d budget %v: %v", importance, budget, err)
			}
			total := res.PricePerWorker * float64(res.RequiredWorkers)
			if total > budget {
				t.Fatalf("importance %d budget %v: payout %v exceeds budget", importance, budget, total)
			}
		}
	}
}

func TestEligibilityBarMonotonic(t *testing.T) {
	prev := 0
	for importance := 1; importance <= 100; importance++ {
		res, err := routing.Compute(importance, 10, testRewards)
		if err != nil {
			t.Fatal(err)
		}
		if res.MinTrophies < prev {
			t.Fatalf("importance %d: bar %d dropped below %d", importance, res.MinTrophies, prev)
		}
		prev = res.MinTrophies
	}
}

func TestPriceTruncatedToCents(t *testing.T) {
	res, err := routing.Compute(50, 1, testRewards)
	if err != nil {
		t.Fatal(err)
	}
	// 1/3 = 0.333... -> 0.33, never 0.34
	if res.PricePerWorker != 0.33 {
		t.Fatalf("got price %v, want 0.33", res.PricePerWorker)
	}
}

func TestRewardPerTier(t *testing.T) {
	low, _ := routing.Compute(10, 5, testRewards)
	med, _ := routing.Compute(40, 5, testRewards)
	high, _ := routing.Compute(90, 5, testRewards)
	if low.TrophyReward != 10 || med.TrophyReward != 25 || high.TrophyReward != 50 {
		t.Fatalf("unexpected rewards: %d/%d/%d", low.TrophyReward, med.TrophyReward, high.TrophyReward)
	}
}

func TestRejectsOutOfRange(t *testing.T) {
	if _, err := routing.Compute(0, 5, testRewards); err == nil {
		t.Fatal("expected error for importance 0")
	}
	if _, err := routing.Compute(101, 5, testRewards); err == nil {
		t.Fatal("expected error for importance 101")
	}
	if _, err := routing.Compute(50, -1, testRewards); err == nil {
		t.Fatal("expected error for negative budget")
	}
}
