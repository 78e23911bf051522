// Package reputation owns the worker trust fields: score deltas, tier
// recomputation, running accuracy/completion means, and the append-only
// audit trail. Nothing else writes these columns.
package reputation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"jurybox/internal/domain"
	"jurybox/internal/repo"
)

const (
	EventTaskAccepted = "task_accepted"
	EventTaskRejected = "task_rejected"
)

// Ledger applies adjudication outcomes to worker records. Callers guarantee
// at-most-once invocation per (task, worker); Apply itself is not
// idempotent.
type Ledger struct {
	Repo        repo.Repo
	AcceptDelta float64
	RejectDelta float64
	Now         func() time.Time
}

func New(r repo.Repo, acceptDelta, rejectDelta float64) Ledger {
	return Ledger{Repo: r, AcceptDelta: acceptDelta, RejectDelta: rejectDelta, Now: time.Now}
}

// TierForScore maps a trust score to its tier, top-down, first match wins.
func TierForScore(score float64) string {
	switch {
	case score >= 0.90:
		return domain.TierExpert
	case score >= 0.75:
		return domain.TierGold
	case score >= 0.50:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}

func (l Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Apply records one adjudicated assignment for a worker: score delta
// (clamped to [0,1]), unconditional completion count, running means at
// 3-decimal precision, tier recomputation, and trophies for accepted work.
// Exactly one task-outcome event is appended, plus a tier-change event when
// the tier moved. The worker row update is a version-guarded compare-and-set
// so concurrent adjudications on other tasks cannot interleave a
// read-modify-write.
func (l Ledger) Apply(ctx context.Context, tx *sql.Tx, workerID, taskID string, accepted bool, trophyReward int) error {
	delta := l.RejectDelta
	eventType := EventTaskRejected
	if accepted {
		delta = l.AcceptDelta
		eventType = EventTaskAccepted
	}
	now := l.now().UTC().Format(time.RFC3339)
	if err := l.Repo.AppendReputationEvent(ctx, tx, domain.ReputationEvent{
		WorkerID:   workerID,
		TaskID:     taskID,
		EventType:  eventType,
		ScoreDelta: delta,
		CreatedAt:  now,
	}); err != nil {
		return fmt.Errorf("append reputation event: %w", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		w, err := l.Repo.GetWorkerTx(ctx, tx, workerID)
		if errors.Is(err, repo.ErrNotFound) {
			// Adjudication outcomes for unknown workers keep their audit row
			// but have no record to update.
			return nil
		}
		if err != nil {
			return err
		}
		oldTier := w.TrustTier
		oldTotal := w.TotalCompleted

		w.TrustScore = clamp(w.TrustScore+delta, 0, 1)
		w.TotalCompleted = oldTotal + 1
		hit := 0.0
		if accepted {
			hit = 1.0
			w.Trophies += trophyReward
		}
		w.AccuracyRate = round3((w.AccuracyRate*float64(oldTotal) + hit) / float64(w.TotalCompleted))
		w.CompletionRate = round3((w.CompletionRate*float64(oldTotal) + 1) / float64(w.TotalCompleted))
		w.TrustTier = TierForScore(w.TrustScore)

		ok, err := l.Repo.UpdateWorkerCAS(ctx, tx, w)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if w.TrustTier != oldTier {
			if err := l.Repo.AppendReputationEvent(ctx, tx, domain.ReputationEvent{
				WorkerID:  workerID,
				TaskID:    taskID,
				EventType: fmt.Sprintf("tier_change_%s_to_%s", oldTier, w.TrustTier),
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("append tier change event: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("worker %s: update contention not resolved", workerID)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
