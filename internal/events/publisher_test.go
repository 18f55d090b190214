package events

import (
	"context"
	"testing"
)

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	// Disabled export must be a no-op, not a panic.
	p.Publish(context.Background(), DecisionEvent{Kind: "inbound", Identifier: "x", Decision: "deny"})
	if err := p.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
