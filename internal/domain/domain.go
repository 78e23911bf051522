package domain

// Task statuses. Routing fields (RequiredWorkers, MinTrophies,
// PricePerWorker, TrophyReward) are fixed at creation and never change.
const (
	TaskOpen       = "open"
	TaskAssigned   = "assigned"
	TaskInProgress = "in_progress"
	TaskEvaluating = "evaluating"
	TaskCompleted  = "completed"
	TaskExpired    = "expired"
	TaskCancelled  = "cancelled"
)

// Assignment statuses.
const (
	AssignmentAssigned  = "assigned"
	AssignmentSubmitted = "submitted"
	AssignmentAccepted  = "accepted"
	AssignmentRejected  = "rejected"
)

// Trust tiers, ordered bronze < silver < gold < expert.
const (
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
	TierExpert = "expert"
)

type Agent struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Balance    float64 `json:"balance"`
	WebhookURL string  `json:"webhook_url,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Worker struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	TrustScore       float64 `json:"trust_score"`
	TrustTier        string  `json:"trust_tier" enum:"bronze,silver,gold,expert"`
	Trophies         int     `json:"trophies"`
	TotalCompleted   int     `json:"total_completed"`
	AccuracyRate     float64 `json:"accuracy_rate"`
	CompletionRate   float64 `json:"completion_rate"`
	AvailableBalance float64 `json:"available_balance"`
	Version          int     `json:"-"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type Task struct {
	ID                   string  `json:"id"`
	AgentID              string  `json:"agent_id"`
	InputPayload         string  `json:"input_payload"`
	Importance           int     `json:"importance"`
	MaxBudget            float64 `json:"max_budget"`
	RequiredWorkers      int     `json:"required_workers"`
	MinTrophies          int     `json:"min_trophies"`
	PricePerWorker       float64 `json:"price_per_worker"`
	EstPrice             float64 `json:"est_price"`
	TrophyReward         int     `json:"trophy_reward"`
	WorkerInstructions   string  `json:"worker_instructions"`
	ExpectedResponseType string  `json:"expected_response_type"`
	Status               string  `json:"status" enum:"open,assigned,in_progress,evaluating,completed,expired,cancelled"`
	ResultJSON           *string `json:"result_json,omitempty"`
	CreatedAt            string  `json:"created_at" format:"date-time"`
	CompletedAt          *string `json:"completed_at,omitempty" format:"date-time"`
}

type Assignment struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	WorkerID     string  `json:"worker_id"`
	Status       string  `json:"status" enum:"assigned,submitted,accepted,rejected"`
	ResponseJSON *string `json:"response_json,omitempty"`
	SubmittedAt  *string `json:"submitted_at,omitempty" format:"date-time"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// ReputationEvent is an append-only audit record of a score change.
type ReputationEvent struct {
	ID         int64   `json:"id"`
	WorkerID   string  `json:"worker_id"`
	TaskID     string  `json:"task_id"`
	EventType  string  `json:"event_type"`
	ScoreDelta float64 `json:"score_delta"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Payout struct {
	TaskID    string  `json:"task_id"`
	WorkerID  string  `json:"worker_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// TierRank orders trust tiers for comparisons; unknown tiers rank lowest.
func TierRank(tier string) int {
	switch tier {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierExpert:
		return 3
	default:
		return 0
	}
}
