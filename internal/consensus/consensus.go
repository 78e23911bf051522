// Package consensus decides, from the submitted responses of a task, whether
// an agreed answer exists and what it is. It is CPU-only: callers load the
// submissions and trust weights, the evaluator just counts and weighs.
package consensus

import (
	"encoding/json"

	"jurybox/internal/routing"
)

// DefaultWeight is used for a submission whose worker record is missing.
const DefaultWeight = 0.5

// Submission is one submitted assignment. Callers pass submissions in
// submission order (earliest submitted_at first); ties between equally
// weighted groups resolve to the group encountered first.
type Submission struct {
	AssignmentID string
	WorkerID     string
	Response     json.RawMessage
	Weight       float64
	SubmittedAt  string
}

type Result struct {
	Reached     bool
	Value       json.RawMessage
	AcceptedIDs []string
	RejectedIDs []string
}

type Options struct {
	// HighWeightThreshold is the share of total trust weight the winning
	// group needs on high-importance tasks. Zero means the 0.6 default.
	HighWeightThreshold float64
}

// Evaluate runs the algorithm for the task's importance tier. Zero
// submissions is a benign "not reached", never an error.
func Evaluate(tier routing.Tier, subs []Submission, opts Options) Result {
	switch tier {
	case routing.TierLow:
		return evaluateLow(subs)
	case routing.TierMedium:
		return evaluateMedium(subs)
	default:
		return evaluateHigh(subs, opts)
	}
}

// evaluateLow accepts the first submission verbatim.
func evaluateLow(subs []Submission) Result {
	if len(subs) == 0 {
		return Result{}
	}
	return Result{
		Reached:     true,
		Value:       subs[0].Response,
		AcceptedIDs: []string{subs[0].AssignmentID},
	}
}

// evaluateMedium groups by canonical response equality and requires the
// largest group to hold a strict majority of submissions. An exact split is
// not reached.
func evaluateMedium(subs []Submission) Result {
	if len(subs) < 2 {
		return Result{}
	}
	groups := groupByResponse(subs)
	best := groups[0]
	for _, g := range groups[1:] {
		if len(g.members) > len(best.members) {
			best = g
		}
	}
	if len(best.members)*2 <= len(subs) {
		return Result{}
	}
	return accept(subs, best)
}

// evaluateHigh weighs each submission by its author's trust score; the
// winning group needs at least the threshold share of total weight. Equal
// weights resolve to the group encountered first in submission order.
func evaluateHigh(subs []Submission, opts Options) Result {
	if len(subs) < 3 {
		return Result{}
	}
	threshold := opts.HighWeightThreshold
	if threshold == 0 {
		threshold = 0.6
	}
	groups := groupByResponse(subs)
	var total float64
	for _, s := range subs {
		total += s.Weight
	}
	if total <= 0 {
		return Result{}
	}
	best := groups[0]
	bestWeight := groupWeight(best)
	for _, g := range groups[1:] {
		if w := groupWeight(g); w > bestWeight {
			best, bestWeight = g, w
		}
	}
	if bestWeight/total < threshold {
		return Result{}
	}
	return accept(subs, best)
}

func accept(subs []Submission, winner group) Result {
	accepted := make([]string, 0, len(winner.members))
	in := make(map[string]bool, len(winner.members))
	for _, m := range winner.members {
		accepted = append(accepted, m.AssignmentID)
		in[m.AssignmentID] = true
	}
	var rejected []string
	for _, s := range subs {
		if !in[s.AssignmentID] {
			rejected = append(rejected, s.AssignmentID)
		}
	}
	return Result{
		Reached:     true,
		Value:       winner.members[0].Response,
		AcceptedIDs: accepted,
		RejectedIDs: rejected,
	}
}

type group struct {
	key     string
	members []Submission
}

func groupWeight(g group) float64 {
	var w float64
	for _, m := range g.members {
		w += m.Weight
	}
	return w
}

// groupByResponse buckets submissions by the canonical form of their
// response, preserving submission order among and within groups.
func groupByResponse(subs []Submission) []group {
	index := make(map[string]int)
	var groups []group
	for _, s := range subs {
		key := CanonicalKey(s.Response)
		if i, ok := index[key]; ok {
			groups[i].members = append(groups[i].members, s)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, group{key: key, members: []Submission{s}})
	}
	return groups
}
