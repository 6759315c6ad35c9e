package segment

import "testing"

func TestLooksLikeTS(t *testing.T) {
	valid := tsPlaintext(800)
	if !looksLikeTS(valid) {
		t.Fatalf("expected valid TS body to pass looksLikeTS")
	}

	garbage := make([]byte, 800)
	if looksLikeTS(garbage) {
		t.Fatalf("expected all-zero body to fail looksLikeTS")
	}
}

func TestLooksLikeAntiHotlinkBody(t *testing.T) {
	html := []byte("<!DOCTYPE html><html><body>403 Forbidden</body></html>")
	if !looksLikeAntiHotlinkBody(html) {
		t.Fatalf("expected HTML error page to be classified anti-hotlink")
	}

	ts := tsPlaintext(800)
	if looksLikeAntiHotlinkBody(ts) {
		t.Fatalf("valid TS body should not be classified anti-hotlink")
	}
}
