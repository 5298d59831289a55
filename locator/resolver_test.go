package locator

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveTarget_PairedListSecondAddressWins(t *testing.T) {
	got, err := ResolveTarget("https://portal.example.com/explore/list/0xAAAA-0xBBBB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := TargetID("0xbbbb" + strings.Repeat("0", 60))
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestResolveTarget_SingleListAddress(t *testing.T) {
	got, err := ResolveTarget("https://portal.example.com/explore/list/0xCCCC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := TargetID("0xcccc" + strings.Repeat("0", 60))
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestResolveTarget_FullWidthAddressPassesThrough(t *testing.T) {
	addr := "0x7ec36d567890abcdef1234567890abcdef1234567890abcdef1234567890abcd"
	got, err := ResolveTarget("https://portal.example.com/explore/list/" + addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != TargetID(addr) {
		t.Fatalf("expected %s got %s", addr, got)
	}
}

func TestResolveTarget_FallbackSingleRun(t *testing.T) {
	got, err := ResolveTarget("some opaque text 0xabcdef0123456789abcdef01 trailing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(got), "0xabcdef0123456789abcdef01") {
		t.Fatalf("expected fallback run, got %s", got)
	}
	if len(got) != TargetIDLength+2 {
		t.Fatalf("expected canonical width, got %d", len(got))
	}
}

func TestResolveTarget_FallbackSecondRunWins(t *testing.T) {
	loc := "0xaaaaaaaaaaaaaaaaaaaaaaaa then 0xbbbbbbbbbbbbbbbbbbbbbbbb"
	got, err := ResolveTarget(loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(got), "0xbbbbbbbbbbbbbbbbbbbbbbbb") {
		t.Fatalf("expected second run to win, got %s", got)
	}
}

func TestResolveTarget_NoTarget(t *testing.T) {
	for _, loc := range []string{"", "https://example.com/nothing-here", "0xshort"} {
		if _, err := ResolveTarget(loc); !errors.Is(err, ErrNoTarget) {
			t.Errorf("locator %q: expected ErrNoTarget, got %v", loc, err)
		}
	}
}

func TestResolveTarget_Deterministic(t *testing.T) {
	loc := "https://portal.example.com/explore/list/0xAAAA-0xBBBB"
	first, err := ResolveTarget(loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := ResolveTarget(loc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("resolution not deterministic: %s vs %s", got, first)
		}
	}
}

func TestResolveTarget_QuerySuffixIgnored(t *testing.T) {
	got, err := ResolveTarget("https://portal.example.com/explore/list/0xDDDD?tab=overview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := TargetID("0xdddd" + strings.Repeat("0", 60))
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}
