package playlist

import "strings"

// SanitizeHeaders strips "br" from Accept-Encoding when the runtime lacks a
// Brotli decoder (this binary carries none, so "br" is always stripped), preserving any
// other encodings. It is pure and idempotent: running it twice on its own
// output is a no-op, satisfying the "Idempotent sanitization" law (§8).
func SanitizeHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}

	for k, v := range out {
		if !strings.EqualFold(k, "Accept-Encoding") {
			continue
		}
		parts := strings.Split(v, ",")
		kept := make([]string, 0, len(parts))
		for _, p := range parts {
			if strings.EqualFold(strings.TrimSpace(p), "br") {
				continue
			}
			kept = append(kept, strings.TrimSpace(p))
		}
		out[k] = strings.Join(kept, ", ")
	}
	return out
}
