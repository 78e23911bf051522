package consensus_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"jurybox/internal/consensus"
	"jurybox/internal/routing"
)

func sub(id string, weight float64, response string) consensus.Submission {
	return consensus.Submission{
		AssignmentID: id,
		WorkerID:     "w-" + id,
		Response:     json.RawMessage(response),
		Weight:       weight,
	}
}

func TestLowFirstSubmissionWins(t *testing.T) {
	res := consensus.Evaluate(routing.TierLow, []consensus.Submission{
		sub("a1", 0.5, `{"answer":"yes"}`),
		sub("a2", 0.5, `{"answer":"no"}`),
	}, consensus.Options{})
	if !res.Reached {
		t.Fatal("expected reached")
	}
	if string(res.Value) != `{"answer":"yes"}` {
		t.Fatalf("unexpected value %s", res.Value)
	}
	if len(res.AcceptedIDs) != 1 || res.AcceptedIDs[0] != "a1" {
		t.Fatalf("unexpected accepted %v", res.AcceptedIDs)
	}
}

func TestZeroSubmissionsNotReached(t *testing.T) {
	for _, tier := range []routing.Tier{routing.TierLow, routing.TierMedium, routing.TierHigh} {
		res := consensus.Evaluate(tier, nil, consensus.Options{})
		if res.Reached {
			t.Fatalf("tier %s: reached with zero submissions", tier)
		}
	}
}

func TestMediumMajority(t *testing.T) {
	res := consensus.Evaluate(routing.TierMedium, []consensus.Submission{
		sub("a1", 0.5, `{"label":"cat"}`),
		sub("a2", 0.5, `{"label":"dog"}`),
		sub("a3", 0.5, `{"label":"cat"}`),
	}, consensus.Options{})
	if !res.Reached {
		t.Fatal("expected majority reached")
	}
	if string(res.Value) != `{"label":"cat"}` {
		t.Fatalf("unexpected value %s", res.Value)
	}
	if len(res.AcceptedIDs) != 2 {
		t.Fatalf("expected 2 accepted, got %v", res.AcceptedIDs)
	}
	if len(res.RejectedIDs) != 1 || res.RejectedIDs[0] != "a2" {
		t.Fatalf("expected a2 rejected, got %v", res.RejectedIDs)
	}
}

func TestMediumThreeWaySplitNotReached(t *testing.T) {
	res := consensus.Evaluate(routing.TierMedium, []consensus.Submission{
		sub("a1", 0.5, `{"label":"cat"}`),
		sub("a2", 0.5, `{"label":"dog"}`),
		sub("a3", 0.5, `{"label":"bird"}`),
	}, consensus.Options{})
	if res.Reached {
		t.Fatal("1-1-1 split must not reach consensus")
	}
}

func TestMediumExactHalfNotReached(t *testing.T) {
	res := consensus.Evaluate(routing.TierMedium, []consensus.Submission{
		sub("a1", 0.5, `{"label":"cat"}`),
		sub("a2", 0.5, `{"label":"dog"}`),
	}, consensus.Options{})
	if res.Reached {
		t.Fatal("1-1 split must not reach consensus")
	}
}

func TestMediumSingleSubmissionNotReached(t *testing.T) {
	res := consensus.Evaluate(routing.TierMedium, []consensus.Submission{
		sub("a1", 0.5, `{"label":"cat"}`),
	}, consensus.Options{})
	if res.Reached {
		t.Fatal("medium tier needs at least 2 submissions")
	}
}

func TestHighWeightedMinorityWins(t *testing.T) {
	// 2-vs-3 by count, but the 2-group carries 1.8 of 2.7 total weight
	// (66.7% >= 60%): weighted voting favors the trusted minority.
	res := consensus.Evaluate(routing.TierHigh, []consensus.Submission{
		sub("a1", 0.9, `{"verdict":"fraud"}`),
		sub("a2", 0.9, `{"verdict":"fraud"}`),
		sub("a3", 0.3, `{"verdict":"ok"}`),
		sub("a4", 0.3, `{"verdict":"ok"}`),
		sub("a5", 0.3, `{"verdict":"ok"}`),
	}, consensus.Options{})
	if !res.Reached {
		t.Fatal("expected weighted consensus")
	}
	if string(res.Value) != `{"verdict":"fraud"}` {
		t.Fatalf("unexpected winner %s", res.Value)
	}
	if len(res.AcceptedIDs) != 2 || len(res.RejectedIDs) != 3 {
		t.Fatalf("unexpected split: accepted %v rejected %v", res.AcceptedIDs, res.RejectedIDs)
	}
}

func TestHighBelowThresholdNotReached(t *testing.T) {
	res := consensus.Evaluate(routing.TierHigh, []consensus.Submission{
		sub("a1", 0.5, `{"verdict":"fraud"}`),
		sub("a2", 0.5, `{"verdict":"ok"}`),
		sub("a3", 0.5, `{"verdict":"maybe"}`),
	}, consensus.Options{})
	if res.Reached {
		t.Fatal("no group holds 60% of weight")
	}
}

func TestHighEqualWeightFirstGroupWins(t *testing.T) {
	// Two groups at exactly half the weight each: below the 60% bar, so not
	// reached. Lowering the bar to exercise the tie-break.
	res := consensus.Evaluate(routing.TierHigh, []consensus.Submission{
		sub("a1", 0.5, `{"v":"x"}`),
		sub("a2", 0.5, `{"v":"y"}`),
		sub("a3", 0.5, `{"v":"x"}`),
		sub("a4", 0.5, `{"v":"y"}`),
	}, consensus.Options{HighWeightThreshold: 0.5})
	if !res.Reached {
		t.Fatal("expected reached at 50% threshold")
	}
	if string(res.Value) != `{"v":"x"}` {
		t.Fatalf("tie must resolve to first-submitted group, got %s", res.Value)
	}
}

func TestHighFewerThanThreeNotReached(t *testing.T) {
	res := consensus.Evaluate(routing.TierHigh, []consensus.Submission{
		sub("a1", 0.9, `{"v":"x"}`),
		sub("a2", 0.9, `{"v":"x"}`),
	}, consensus.Options{})
	if res.Reached {
		t.Fatal("high tier needs at least 3 submissions")
	}
}

func TestCanonicalGroupingIgnoresFieldOrder(t *testing.T) {
	res := consensus.Evaluate(routing.TierMedium, []consensus.Submission{
		sub("a1", 0.5, `{"a":1,"b":"x"}`),
		sub("a2", 0.5, `{"b":"x","a":1}`),
		sub("a3", 0.5, `{"a":2,"b":"x"}`),
	}, consensus.Options{})
	if !res.Reached {
		t.Fatal("reordered fields must land in the same group")
	}
	if len(res.AcceptedIDs) != 2 {
		t.Fatalf("expected a1+a2 grouped, got %v", res.AcceptedIDs)
	}
}

func TestCanonicalKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"b":2,"a":1}`, `{"a":1,"b":2}`},
		{`{"n":{"y":true,"x":false}}`, `{"n":{"x":false,"y":true}}`},
		{`[3,2,1]`, `[3,2,1]`},
		{`"str"`, `"str"`},
		{`1.50`, `1.50`},
		{``, `{}`},
		{`not json`, `{}`},
	}
	for _, c := range cases {
		if got := consensus.CanonicalKey(json.RawMessage(c.in)); got != c.want {
			t.Fatalf("CanonicalKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestManySubmissionsStillStrictMajority(t *testing.T) {
	// 6 submissions, 3-3: exactly half is not a strict majority.
	var subs []consensus.Submission
	for i := 0; i < 3; i++ {
		subs = append(subs, sub(fmt.Sprintf("x%d", i), 0.5, `{"v":1}`))
		subs = append(subs, sub(fmt.Sprintf("y%d", i), 0.5, `{"v":2}`))
	}
	res := consensus.Evaluate(routing.TierMedium, subs, consensus.Options{})
	if res.Reached {
		t.Fatal("3-3 split must not reach consensus")
	}
}
