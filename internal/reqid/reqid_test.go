package reqid

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	if id == "" {
		t.Fatal("empty id")
	}
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %q from context, got %q ok=%v", id, got, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestWithID(t *testing.T) {
	ctx := WithID(context.Background(), "conn-42")
	got, ok := FromContext(ctx)
	if !ok || got != "conn-42" {
		t.Fatalf("expected conn-42, got %q ok=%v", got, ok)
	}
}
