// Package naming derives archival output filenames from job titles.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sanitize reduces title to the filesystem-safe character set the spec
// allows: alphanumerics, space, '-', '_'. Runs of stripped characters
// collapse to nothing (not to a separator) and the result is trimmed.
func Sanitize(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// FallbackName returns the default name used when a sanitized title is empty.
func FallbackName(jobID string) string {
	id := jobID
	if len(id) > 8 {
		id = id[:8]
	}
	return "video_" + id
}

// Resolve returns the final base name (without extension) for a job,
// applying the sanitize-then-fallback rule from §6.
func Resolve(title, jobID string) string {
	if s := Sanitize(title); s != "" {
		return s
	}
	return FallbackName(jobID)
}

// NextAvailablePath finds the first path in dir named "<base>.mp4" or, on
// collision, "<base> (N).mp4" for the smallest unused positive N.
func NextAvailablePath(dir, base string) (string, error) {
	candidate := filepath.Join(dir, base+".mp4")
	if !exists(candidate) {
		return candidate, nil
	}
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d).mp4", base, n))
		if !exists(candidate) {
			return candidate, nil
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
