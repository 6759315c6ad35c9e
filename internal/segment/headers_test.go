package segment

import "testing"

func TestBuildHeadersSourcePage(t *testing.T) {
	h := buildHeaders(StrategySourcePage, map[string]string{"User-Agent": "x"}, "https://site.example/watch/1", "https://cdn.example/a.m3u8", "https://cdn.example/seg0.ts")
	if h["Referer"] != "https://site.example/watch/1" {
		t.Fatalf("Referer = %q", h["Referer"])
	}
	if h["Origin"] != "https://site.example" {
		t.Fatalf("Origin = %q", h["Origin"])
	}
	if h["User-Agent"] != "x" {
		t.Fatalf("base headers not preserved")
	}
}

func TestBuildHeadersNoReferer(t *testing.T) {
	h := buildHeaders(StrategyNoReferer, map[string]string{"Referer": "https://leftover.example"}, "https://site.example", "https://cdn.example/a.m3u8", "https://cdn.example/seg0.ts")
	if _, ok := h["Referer"]; ok {
		t.Fatalf("Referer should be stripped for no_referer strategy")
	}
}

func TestBuildHeadersSegmentDomain(t *testing.T) {
	h := buildHeaders(StrategySegmentDomain, nil, "", "", "https://cdn.example/seg0.ts")
	if h["Origin"] != "https://cdn.example" {
		t.Fatalf("Origin = %q, want https://cdn.example", h["Origin"])
	}
}
