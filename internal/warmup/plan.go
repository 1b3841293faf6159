package warmup

import (
	"encoding/json"
	"strings"

	"infergate/pkg/types"
)

// DefaultLengths are the prompt sizes (approximate tokens) warmed at startup.
// They cover short prompts, medium conversations and long context, forcing
// the backend to compile kernels for each shape before live traffic arrives.
var DefaultLengths = []int{128, 256, 512, 1024, 2048}

// Entry is one synthetic request of the warm-up plan.
type Entry struct {
	Tokens int
	Body   []byte
}

// BuildPlan constructs the immutable warm-up plan for a model. The plan is
// consumed linearly, exactly once.
func BuildPlan(modelID string, lengths []int) []Entry {
	plan := make([]Entry, 0, len(lengths))
	for _, n := range lengths {
		body, _ := json.Marshal(types.CompletionRequest{
			Model:       modelID,
			Prompt:      promptOfLength(n),
			MaxTokens:   10, // short generation, we only want the shape compiled
			Temperature: 0,
		})
		plan = append(plan, Entry{Tokens: n, Body: body})
	}
	return plan
}

const basePhrase = "The quick brown fox jumps over the lazy dog. "

// promptOfLength produces a prompt of roughly tokens length using the
// 1 token ~= 4 characters heuristic.
func promptOfLength(tokens int) string {
	target := tokens * 4
	reps := target/len(basePhrase) + 1
	return strings.Repeat(basePhrase, reps)[:target]
}
