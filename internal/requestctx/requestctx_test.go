package requestctx

import (
	"context"
	"testing"
)

func TestValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetActor(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}
	ctx = WithActor(WithRequestID(ctx, "req-1"), "ana@example.cl")
	if GetRequestID(ctx) != "req-1" || GetActor(ctx) != "ana@example.cl" {
		t.Fatalf("unexpected values %q %q", GetRequestID(ctx), GetActor(ctx))
	}
}
