package segment

import "strings"

// tsSyncByte is the MPEG-TS packet sync byte; a well-formed transport
// stream repeats it every 188 bytes.
const tsSyncByte = 0x47

// tsSyncOffsets are the positions checked for the sync byte. Checking
// several packet boundaries (not just offset 0) tolerates a segment whose
// very first byte was corrupted in transit while still rejecting bodies
// that are clearly not MPEG-TS (HTML error pages, JSON, empty bodies).
var tsSyncOffsets = []int{0, 188, 376, 564, 752}

// looksLikeTS reports whether data has the sync byte at two or more of the
// checked offsets. Short segments that reach fewer offsets are also
// accepted when at least half of the offsets they do reach line up, since a
// final segment may be shorter than the full offset window.
func looksLikeTS(data []byte) bool {
	if len(data) < 188 {
		return false
	}
	hits := 0
	checked := 0
	for _, off := range tsSyncOffsets {
		if off >= len(data) {
			continue
		}
		checked++
		if data[off] == tsSyncByte {
			hits++
		}
	}
	if checked == 0 {
		return false
	}
	return hits >= 2 || hits*2 >= checked // two hits, or at least half the checked offsets
}

// startsWithSyncByte reports whether data's very first byte is the TS sync
// byte — §4.3 step 5's short-circuit for CDNs that decrypt AES-128 segments
// server-side despite advertising encryption in the playlist (§9).
func startsWithSyncByte(data []byte) bool {
	return len(data) > 0 && data[0] == tsSyncByte
}

// looksLikeImage reports whether data opens with a JPEG/PNG/GIF magic
// number — the shape a CDN substitutes for segment bytes when it decides a
// request is hotlinked (§4.3 step 3).
func looksLikeImage(data []byte) bool {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF: // JPEG
		return true
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47: // PNG
		return true
	case len(data) >= 3 && string(data[:3]) == "GIF": // GIF87a/GIF89a
		return true
	}
	return false
}

// looksLikeAntiHotlinkBody reports whether data looks like an HTML error
// page or JSON error payload rather than binary segment content — the
// shape a CDN returns when it blocks a request for missing Referer/Origin.
func looksLikeAntiHotlinkBody(data []byte) bool {
	if looksLikeTS(data) {
		return false
	}
	if looksLikeImage(data) {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(string(head))
	for _, marker := range []string{"<html", "<!doctype", "<body", `{"error`, "access denied", "403 forbidden"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
