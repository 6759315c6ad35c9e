package playlist

// Key describes an AES-128 clear-key encryption directive attached to a
// segment. IV is nil when the playlist did not specify one (or specified
// one that failed to parse); callers fall back to the sequence-number IV.
type Key struct {
	Method string
	URI    string
	IV     []byte
}

// Segment is one entry of a media playlist.
type Segment struct {
	URL            string
	DurationSeconds float64
	Index          int
	SequenceNumber int
	Key            *Key
}

// Descriptor is the result of parsing an HLS playlist: the variant actually
// selected (if the root was a master playlist) reduced to its ordered
// segment list.
type Descriptor struct {
	Segments      []Segment
	Duration      int // seconds, integer
	Resolution    string
	HasEncryption bool
	BaseURL       string
}
