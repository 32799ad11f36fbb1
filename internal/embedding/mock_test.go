package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockClientDeterministic(t *testing.T) {
	c := NewMockClient()
	ctx := context.Background()

	a, err := c.Embed(ctx, "the same text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := c.Embed(ctx, "the same text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(a) != Dimensions {
		t.Fatalf("dimension = %d, want %d", len(a), Dimensions)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical text produced different vectors")
		}
	}

	other, err := c.Embed(ctx, "different text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestMockClientNormalized(t *testing.T) {
	c := NewMockClient()
	vec, err := c.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-4 {
		t.Errorf("vector norm = %v, want 1", math.Sqrt(norm))
	}
}
