package segment

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

func encryptFixture(t *testing.T, key, iv, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	pad := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), pad...)
}

func tsPlaintext(n int) []byte {
	buf := make([]byte, n)
	for _, off := range tsSyncOffsets {
		if off < len(buf) {
			buf[off] = tsSyncByte
		}
	}
	return buf
}

func TestDecryptAES128CBCWithPlaylistIV(t *testing.T) {
	key := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")
	plain := tsPlaintext(376)
	ct := encryptFixture(t, key, iv, plain)

	got, err := decryptAES128CBC(ct, key, decryptCandidates(iv, 42))
	if err != nil {
		t.Fatalf("decryptAES128CBC: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypted mismatch")
	}
}

func TestDecryptAES128CBCFallsBackToSequenceIV(t *testing.T) {
	key := []byte("0123456789abcdef")
	seq := 7
	iv := sequenceIV(seq)
	plain := tsPlaintext(376)
	ct := encryptFixture(t, key, iv, plain)

	// No playlist IV supplied; decrypt must fall back to the sequence IV.
	got, err := decryptAES128CBC(ct, key, decryptCandidates(nil, seq))
	if err != nil {
		t.Fatalf("decryptAES128CBC: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypted mismatch using sequence-number IV")
	}
}

func TestSequenceIVBigEndian(t *testing.T) {
	iv := sequenceIV(256)
	want := make([]byte, 16)
	want[14] = 1
	if !bytes.Equal(iv, want) {
		t.Fatalf("sequenceIV(256) = %x, want %x", iv, want)
	}
}

func TestPKCS7UnpadInvalidLeavesDataUntouched(t *testing.T) {
	data := []byte{1, 2, 3, 255}
	got := pkcs7Unpad(data)
	if !bytes.Equal(got, data) {
		t.Fatalf("pkcs7Unpad mutated invalid padding: got %v", got)
	}
}

func TestZeroExtend(t *testing.T) {
	data := make([]byte, 20)
	out := zeroExtend(data)
	if len(out)%aes.BlockSize != 0 {
		t.Fatalf("zeroExtend left length %d, not a block multiple", len(out))
	}
}
