package naming

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"clip one", "clip one"},
		{"a/b:c*d", "abcd"},
		{"  trim me  ", "trim me"},
		{"日本語 title", "title"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	in := "some / weird <<title>> 123"
	once := Sanitize(in)
	twice := Sanitize(once)
	if once != twice {
		t.Fatalf("sanitize is not idempotent: %q != %q", once, twice)
	}
}

func TestResolveFallback(t *testing.T) {
	got := Resolve("###", "abcdefgh-1234")
	want := "video_abcdefgh"
	if got != want {
		t.Fatalf("Resolve fallback = %q, want %q", got, want)
	}
}

func TestNextAvailablePath(t *testing.T) {
	dir := t.TempDir()

	p1, err := NextAvailablePath(dir, "clip")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p1) != "clip.mp4" {
		t.Fatalf("first candidate = %q, want clip.mp4", p1)
	}
	if err := os.WriteFile(p1, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p2, err := NextAvailablePath(dir, "clip")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p2) != "clip (1).mp4" {
		t.Fatalf("second candidate = %q, want clip (1).mp4", p2)
	}
	if err := os.WriteFile(p2, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p3, err := NextAvailablePath(dir, "clip")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p3) != "clip (2).mp4" {
		t.Fatalf("third candidate = %q, want clip (2).mp4", p3)
	}
}
