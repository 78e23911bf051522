// Package authoring turns a raw task payload into instructions a human
// worker can act on. The static implementation derives instructions from
// the payload's declared type; richer implementations can plug in behind
// the same interface.
package authoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Instructions is what workers see when they open a task.
type Instructions struct {
	WorkerInstructions   string `json:"worker_instructions"`
	ExpectedResponseType string `json:"expected_response_type"`
}

type Authoring interface {
	Analyze(ctx context.Context, payload json.RawMessage) (Instructions, error)
}

// Static builds instructions from the payload itself, without calling out
// to any external service.
type Static struct{}

func (Static) Analyze(_ context.Context, payload json.RawMessage) (Instructions, error) {
	var body struct {
		Type     string `json:"type"`
		Question string `json:"question"`
		Prompt   string `json:"prompt"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &body); err != nil {
			return Instructions{}, fmt.Errorf("decode task payload: %w", err)
		}
	}

	kind := strings.ToLower(strings.TrimSpace(body.Type))
	prompt := body.Question
	if prompt == "" {
		prompt = body.Prompt
	}

	ins := Instructions{ExpectedResponseType: "json"}
	switch kind {
	case "label", "classification":
		ins.WorkerInstructions = "Review the attached item and pick the label that best describes it."
		ins.ExpectedResponseType = "label"
	case "transcription":
		ins.WorkerInstructions = "Transcribe the attached content exactly as written, preserving punctuation."
		ins.ExpectedResponseType = "text"
	case "comparison":
		ins.WorkerInstructions = "Compare the attached items and choose the one that better satisfies the criteria."
		ins.ExpectedResponseType = "choice"
	default:
		ins.WorkerInstructions = "Complete the task as described in the payload and submit a JSON response."
	}
	if prompt != "" {
		ins.WorkerInstructions += " " + prompt
	}
	return ins, nil
}
