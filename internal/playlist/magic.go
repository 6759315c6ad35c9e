package playlist

import "bytes"

// looksLikeMP4 matches an ftyp box at offset 4, or one of the leading
// size+"ftyp" patterns the spec calls out, within the first bytes of body.
func looksLikeMP4(body []byte) bool {
	if len(body) >= 8 && bytes.Equal(body[4:8], []byte("ftyp")) {
		return true
	}
	patterns := [][]byte{
		{0x00, 0x00, 0x00, 0x1c},
		{0x00, 0x00, 0x00, 0x18},
		{0x00, 0x00, 0x00, 0x20},
	}
	for _, p := range patterns {
		if bytes.HasPrefix(body, p) {
			return true
		}
	}
	return false
}

func looksLikeJPEG(body []byte) bool {
	return bytes.HasPrefix(body, []byte{0xFF, 0xD8, 0xFF})
}

func looksLikePNG(body []byte) bool {
	return bytes.HasPrefix(body, []byte{0x89, 0x50, 0x4E, 0x47})
}

// rejectNonPlaylistMagic inspects the first 8 KiB of body for MP4/JPEG/PNG
// magic and returns a NotAPlaylist error if any matches.
func rejectNonPlaylistMagic(body []byte) error {
	head := body
	const cap8K = 8 * 1024
	if len(head) > cap8K {
		head = head[:cap8K]
	}
	switch {
	case looksLikeMP4(head):
		return newError(NotAPlaylist, "body looks like an MP4 container")
	case looksLikeJPEG(head):
		return newError(NotAPlaylist, "body looks like a JPEG image")
	case looksLikePNG(head):
		return newError(NotAPlaylist, "body looks like a PNG image")
	}
	return nil
}
