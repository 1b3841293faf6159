package warmup

import (
	"encoding/json"
	"testing"

	"infergate/pkg/types"
)

func TestPromptOfLength(t *testing.T) {
	for _, n := range []int{128, 2048} {
		p := promptOfLength(n)
		if len(p) != n*4 {
			t.Fatalf("tokens=%d len=%d want=%d", n, len(p), n*4)
		}
	}
}

func TestBuildPlan(t *testing.T) {
	plan := BuildPlan("m1", DefaultLengths)
	if len(plan) != 5 {
		t.Fatalf("plan len=%d", len(plan))
	}
	for i, e := range plan {
		if e.Tokens != DefaultLengths[i] {
			t.Fatalf("entry %d tokens=%d", i, e.Tokens)
		}
		var req types.CompletionRequest
		if err := json.Unmarshal(e.Body, &req); err != nil {
			t.Fatalf("entry %d body: %v", i, err)
		}
		if req.Model != "m1" || req.MaxTokens != 10 || req.Temperature != 0 {
			t.Fatalf("entry %d req: %+v", i, req)
		}
		if len(req.Prompt) != e.Tokens*4 {
			t.Fatalf("entry %d prompt len=%d", i, len(req.Prompt))
		}
	}
}
