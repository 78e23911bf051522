// Package routing converts a task's declared importance and budget into its
// worker quota, per-worker price, eligibility bar, and completion reward.
// Everything here is pure; the values it produces are fixed on the task row
// at creation time and never recomputed.
package routing

import (
	"fmt"
	"math"
)

// Tier is the coarse importance bucket that selects the consensus algorithm.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Rewards are the platform-defined trophy grants per tier, independent of
// the task price.
type Rewards struct {
	Low    int
	Medium int
	High   int
}

type Result struct {
	RequiredWorkers int
	MinTrophies     int
	PricePerWorker  float64
	EstPrice        float64
	TrophyReward    int
	Tier            Tier
}

// TierFor buckets a 1-100 importance: <33 low, <66 medium, else high.
func TierFor(importance int) Tier {
	switch {
	case importance < 33:
		return TierLow
	case importance < 66:
		return TierMedium
	default:
		return TierHigh
	}
}

// Workers returns the quota for a tier: 1, 3, or 5 independent opinions.
func Workers(tier Tier) int {
	switch tier {
	case TierLow:
		return 1
	case TierMedium:
		return 3
	default:
		return 5
	}
}

// Compute derives routing for a task. Importance must be 1-100 and the
// budget non-negative; the per-worker price is truncated to cents so the sum
// paid out never exceeds the budget.
func Compute(importance int, maxBudget float64, rewards Rewards) (Result, error) {
	if importance < 1 || importance > 100 {
		return Result{}, fmt.Errorf("importance must be between 1 and 100, got %d", importance)
	}
	if maxBudget < 0 {
		return Result{}, fmt.Errorf("max budget must be non-negative, got %v", maxBudget)
	}
	tier := TierFor(importance)
	n := Workers(tier)
	price := math.Floor(maxBudget/float64(n)*100) / 100
	reward := rewards.Low
	switch tier {
	case TierMedium:
		reward = rewards.Medium
	case TierHigh:
		reward = rewards.High
	}
	return Result{
		RequiredWorkers: n,
		MinTrophies:     importance * 10,
		PricePerWorker:  price,
		EstPrice:        price * float64(n),
		TrophyReward:    reward,
		Tier:            tier,
	}, nil
}
