package playlist

import "fmt"

// ErrorKind enumerates the C2-level failure classes from §4.2.
type ErrorKind string

const (
	BadResponse ErrorKind = "bad_response"
	NotAPlaylist ErrorKind = "not_a_playlist"
	NoVariants  ErrorKind = "no_variants"
	NoSegments  ErrorKind = "no_segments"
)

// Error is the kind-tagged error C2 raises. Job-level callers classify on
// Kind rather than string-matching messages.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("playlist: %s: %s", e.Kind, e.Msg)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
