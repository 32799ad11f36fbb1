package llm

import (
	"testing"

	"github.com/credobot/credo/internal/domain"
	"github.com/google/uuid"
)

func TestParseConsistency(t *testing.T) {
	id := uuid.New()
	raw := `{
		"is_consistent": false,
		"conflicts": [
			{"belief_id": "` + id.String() + `", "reason": "draft praises dynamic typing"},
			{"belief_id": "the belief about typing", "reason": "echoed a title"}
		],
		"evidence_strength": "moderate"
	}`

	verdict, err := parseConsistency([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if verdict.IsConsistent {
		t.Error("verdict should be inconsistent")
	}
	if verdict.EvidenceStrength != domain.StrengthModerate {
		t.Errorf("strength = %v, want moderate", verdict.EvidenceStrength)
	}
	// The non-UUID conflict is dropped, not an error.
	if len(verdict.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(verdict.Conflicts))
	}
	if verdict.Conflicts[0].BeliefID != id {
		t.Errorf("conflict belief = %v, want %v", verdict.Conflicts[0].BeliefID, id)
	}
}

func TestParseConsistency_UnknownStrengthDefaultsWeak(t *testing.T) {
	verdict, err := parseConsistency([]byte(`{"is_consistent": true, "evidence_strength": "overwhelming"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if verdict.EvidenceStrength != domain.StrengthWeak {
		t.Errorf("strength = %v, want weak fallback", verdict.EvidenceStrength)
	}
}

func TestParseConsistency_Malformed(t *testing.T) {
	if _, err := parseConsistency([]byte("I think it's fine")); err == nil {
		t.Error("expected an error for non-JSON output")
	}
}
