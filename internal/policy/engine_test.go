package policy

import (
	"strings"
	"testing"

	"github.com/waspsec/wasp/internal/trust"
)

var (
	dangerous = []string{"exec", "write", "message", "gateway", "Edit", "Write"}
	safe      = []string{"web_search", "memory_search", "Read", "session_status"}
)

func TestTrustedBypassesAllLists(t *testing.T) {
	eng := NewDefaultEngine(dangerous, safe, false)
	for _, level := range []trust.Level{trust.Trusted, trust.Sovereign} {
		for _, tool := range []string{"exec", "write", "web_search", "anything_else"} {
			d := eng.Evaluate(Context{Tool: tool, Trust: level, Sender: "+4401"})
			if !d.Allow {
				t.Errorf("%s sender should run %s, got: %s", level, tool, d.Reason)
			}
		}
	}
}

func TestUntrustedBlockedOnDangerous(t *testing.T) {
	eng := NewDefaultEngine(dangerous, safe, false)
	for _, level := range []trust.Level{trust.Limited, ""} {
		d := eng.Evaluate(Context{Tool: "exec", Trust: level, Sender: "+4409"})
		if d.Allow {
			t.Fatalf("trust %q must not run exec", level)
		}
		if !strings.Contains(d.Reason, "blocked for untrusted sender") {
			t.Fatalf("unexpected reason: %s", d.Reason)
		}
	}
}

func TestUntrustedAllowedOnSafe(t *testing.T) {
	eng := NewDefaultEngine(dangerous, safe, false)
	d := eng.Evaluate(Context{Tool: "web_search", Trust: trust.Limited})
	if !d.Allow {
		t.Fatalf("safe tool should be allowed: %s", d.Reason)
	}
}

func TestUnlistedDefaultsToAllow(t *testing.T) {
	eng := NewDefaultEngine(dangerous, safe, false)
	d := eng.Evaluate(Context{Tool: "brand_new_tool", Trust: ""})
	if !d.Allow {
		t.Fatalf("unlisted tool defaults to allow: %s", d.Reason)
	}
}

func TestDefaultDenyBlocksUnlisted(t *testing.T) {
	eng := NewDefaultEngine(dangerous, safe, true)
	d := eng.Evaluate(Context{Tool: "brand_new_tool", Trust: ""})
	if d.Allow {
		t.Fatal("default-deny must block unlisted tools")
	}
	// Listed tools are unaffected.
	if d := eng.Evaluate(Context{Tool: "web_search", Trust: ""}); !d.Allow {
		t.Fatalf("safe list still applies under default-deny: %s", d.Reason)
	}
}

func TestDangerousWinsOnOverlap(t *testing.T) {
	eng := NewDefaultEngine([]string{"overlap"}, []string{"overlap"}, false)
	d := eng.Evaluate(Context{Tool: "overlap", Trust: trust.Limited})
	if d.Allow {
		t.Fatal("a tool in both lists must be treated as dangerous")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	eng := NewDefaultEngine(dangerous, safe, false)
	ctx := Context{Tool: "exec", Trust: trust.Limited, Sender: "+4409"}
	a := eng.Evaluate(ctx)
	b := eng.Evaluate(ctx)
	if a.Allow != b.Allow || a.Reason != b.Reason {
		t.Fatalf("identical inputs must yield identical outputs: %+v vs %+v", a, b)
	}
}
