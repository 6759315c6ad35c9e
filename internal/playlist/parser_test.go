package playlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reelvault/worker/internal/httpclient"
)

func serverClient(t *testing.T, handler http.HandlerFunc) (*httptest.Server, httpclient.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, httpclient.Standard(httpclient.StandardConfig{})
}

func TestParseMediaPlaylist(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-MEDIA-SEQUENCE:5\n" +
		"#EXTINF:10.0,\n" +
		"seg0.ts\n" +
		"#EXTINF:10.0,\n" +
		"seg1.ts\n"

	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	desc, err := Parse(context.Background(), srv.URL+"/playlist.m3u8", nil, client)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(desc.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(desc.Segments))
	}
	if desc.Segments[0].SequenceNumber != 5 || desc.Segments[1].SequenceNumber != 6 {
		t.Fatalf("sequence numbers = %d,%d; want 5,6",
			desc.Segments[0].SequenceNumber, desc.Segments[1].SequenceNumber)
	}
	if desc.Duration != 20 {
		t.Fatalf("Duration = %d, want 20", desc.Duration)
	}
	if desc.HasEncryption {
		t.Fatalf("HasEncryption = true, want false")
	}
}

func TestParseMasterPlaylistSelectsHighestBandwidth(t *testing.T) {
	master := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\n" +
		"low.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1920x1080\n" +
		"high.m3u8\n"
	media := "#EXTM3U\n#EXTINF:5.0,\nseg0.ts\n"

	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "high.m3u8"):
			w.Write([]byte(media))
		case strings.HasSuffix(r.URL.Path, "low.m3u8"):
			t.Errorf("low-bandwidth variant was fetched; expected only the high-bandwidth one")
			w.Write([]byte(media))
		default:
			w.Write([]byte(master))
		}
	})

	desc, err := Parse(context.Background(), srv.URL+"/master.m3u8", nil, client)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if desc.Resolution != "1920x1080" {
		t.Fatalf("Resolution = %q, want 1920x1080", desc.Resolution)
	}
	if len(desc.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(desc.Segments))
	}
}

func TestParseKeyRotation(t *testing.T) {
	body := "#EXTM3U\n" +
		`#EXT-X-KEY:METHOD=AES-128,URI="key1.bin",IV=0x00000000000000000000000000000001` + "\n" +
		"#EXTINF:5.0,\nseg0.ts\n" +
		`#EXT-X-KEY:METHOD=AES-128,URI="key2.bin"` + "\n" +
		"#EXTINF:5.0,\nseg1.ts\n" +
		"#EXT-X-KEY:METHOD=NONE\n" +
		"#EXTINF:5.0,\nseg2.ts\n"

	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	desc, err := Parse(context.Background(), srv.URL+"/playlist.m3u8", nil, client)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(desc.Segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(desc.Segments))
	}
	if desc.Segments[0].Key == nil || desc.Segments[0].Key.IV == nil {
		t.Fatalf("segment 0 should carry a key with a parsed IV")
	}
	if len(desc.Segments[0].Key.IV) != 16 {
		t.Fatalf("IV length = %d, want 16", len(desc.Segments[0].Key.IV))
	}
	if desc.Segments[1].Key == nil || desc.Segments[1].Key.IV != nil {
		t.Fatalf("segment 1 should carry a key with no IV (falls back to sequence-number IV)")
	}
	if desc.Segments[2].Key != nil {
		t.Fatalf("segment 2 should have no key after METHOD=NONE")
	}
	if !desc.HasEncryption {
		t.Fatalf("HasEncryption = false, want true")
	}
}

func TestParseIVMalformedFallsBackToNil(t *testing.T) {
	cases := []struct {
		name string
		line string
		want []byte
	}{
		{"bare hex", `#EXT-X-KEY:METHOD=AES-128,URI="k",IV=000102030405060708090a0b0c0d0e0f`, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}},
		{"0x prefixed", `#EXT-X-KEY:METHOD=AES-128,URI="k",IV=0x000102030405060708090a0b0c0d0e0f`, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}},
		{"malformed non-hex", `#EXT-X-KEY:METHOD=AES-128,URI="k",IV=0xNOTHEX`, nil},
		{"odd length", `#EXT-X-KEY:METHOD=AES-128,URI="k",IV=0x0`, nil},
		{"missing", `#EXT-X-KEY:METHOD=AES-128,URI="k"`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseIV(tc.line)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("parseIV(%q) = %x, want nil", tc.line, got)
				}
				return
			}
			if got == nil || len(got) != len(tc.want) {
				t.Fatalf("parseIV(%q) = %x, want a %d-byte IV", tc.line, got, len(tc.want))
			}
		})
	}
}

func TestParseEmptyPlaylistReturnsNoSegments(t *testing.T) {
	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n"))
	})

	_, err := Parse(context.Background(), srv.URL+"/playlist.m3u8", nil, client)
	perr, ok := err.(*Error)
	if !ok || perr.Kind != NoSegments {
		t.Fatalf("err = %v, want *Error{Kind: NoSegments}", err)
	}
}

func TestParseRejectsOversizedMediaContentLength(t *testing.T) {
	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("Content-Length", "5000000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("#EXTM3U\n"))
	})

	_, err := Parse(context.Background(), srv.URL+"/playlist.m3u8", nil, client)
	perr, ok := err.(*Error)
	if !ok || perr.Kind != BadResponse {
		t.Fatalf("err = %v, want *Error{Kind: BadResponse}", err)
	}
}

func TestParseRejectsMP4Magic(t *testing.T) {
	mp4Body := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom")...)
	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(mp4Body)
	})

	_, err := Parse(context.Background(), srv.URL+"/playlist.m3u8", nil, client)
	perr, ok := err.(*Error)
	if !ok || perr.Kind != NotAPlaylist {
		t.Fatalf("err = %v, want *Error{Kind: NotAPlaylist}", err)
	}
}

func TestParseRejectsNonUTF8(t *testing.T) {
	srv, client := serverClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xff, 0xfe, 0xfd})
	})

	_, err := Parse(context.Background(), srv.URL+"/playlist.m3u8", nil, client)
	perr, ok := err.(*Error)
	if !ok || perr.Kind != BadResponse {
		t.Fatalf("err = %v, want *Error{Kind: BadResponse}", err)
	}
}

func TestSanitizeHeadersStripsBrotli(t *testing.T) {
	in := map[string]string{"Accept-Encoding": "gzip, br, deflate"}
	out := SanitizeHeaders(in)
	if strings.Contains(out["Accept-Encoding"], "br") {
		t.Fatalf("Accept-Encoding = %q, still contains br", out["Accept-Encoding"])
	}
	if !strings.Contains(out["Accept-Encoding"], "gzip") || !strings.Contains(out["Accept-Encoding"], "deflate") {
		t.Fatalf("Accept-Encoding = %q, lost non-br encodings", out["Accept-Encoding"])
	}

	again := SanitizeHeaders(out)
	if again["Accept-Encoding"] != out["Accept-Encoding"] {
		t.Fatalf("sanitization not idempotent: %q -> %q", out["Accept-Encoding"], again["Accept-Encoding"])
	}
}
