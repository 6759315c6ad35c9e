package segment

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// sequenceIV builds the default HLS IV: the segment sequence number as a
// big-endian 128-bit integer, used whenever the playlist's #EXT-X-KEY did
// not specify (or failed to parse) its own IV.
func sequenceIV(sequenceNumber int) []byte {
	iv := make([]byte, aes.BlockSize)
	n := sequenceNumber
	for i := len(iv) - 1; i >= 0 && n > 0; i-- {
		iv[i] = byte(n & 0xff)
		n >>= 8
	}
	return iv
}

// decryptCandidates returns the IVs worth trying, in priority order: the
// playlist-declared IV first, then the sequence-number IV, then an
// all-zero IV as a last resort for origins that omit IV handling entirely.
func decryptCandidates(playlistIV []byte, sequenceNumber int) [][]byte {
	var out [][]byte
	if len(playlistIV) == aes.BlockSize {
		out = append(out, playlistIV)
	}
	seq := sequenceIV(sequenceNumber)
	out = append(out, seq)
	zero := make([]byte, aes.BlockSize)
	out = append(out, zero)
	return out
}

// decryptAES128CBC decrypts data (which must be zero-extended to a block
// boundary by the caller) with key under each IV candidate in turn,
// validating the plaintext via looksLikeTS after each attempt. The first
// candidate whose plaintext passes validation wins; if none do, the result
// of the last candidate tried is returned anyway so the muxer gets a
// best-effort file rather than nothing (§4.3 step 5 / Open Question (b)).
func decryptAES128CBC(data, key []byte, candidates [][]byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("segment: build AES cipher: %w", err)
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("segment: ciphertext length %d is not a multiple of the block size", len(data))
	}

	var last []byte
	for _, iv := range candidates {
		buf := make([]byte, len(data))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, data)
		plain := pkcs7Unpad(buf)
		last = plain
		if looksLikeTS(plain) {
			return plain, nil
		}
	}
	return last, nil
}

// pkcs7Unpad strips PKCS#7 padding. Invalid padding (out of range, or bytes
// that don't match) leaves the buffer untouched rather than erroring, since
// a wrong IV guess produces garbage padding that the TS validator downstream
// will reject anyway.
func pkcs7Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return data
	}
	for i := 0; i < padLen; i++ {
		if data[len(data)-1-i] != byte(padLen) {
			return data
		}
	}
	return data[:len(data)-padLen]
}

// zeroExtend pads data up to the next AES block boundary with zero bytes,
// tolerating origins that truncate the final block of a segment.
func zeroExtend(data []byte) []byte {
	rem := len(data) % aes.BlockSize
	if rem == 0 {
		return data
	}
	return append(data, make([]byte, aes.BlockSize-rem)...)
}
