// Package obscure reversibly encodes bookmark passwords the way the
// teacher's fs/config/obscure package does (seen via MustReveal call
// sites in backend/sftp and backend/ftp): not encryption, just enough to
// keep a password out of plain sight in bookmarks.toml. Real secret
// storage is out of scope (spec.md §1) and lives behind config.SecretStore.
package obscure

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"crypto/cipher"
	"crypto/des"
)

// fixed, non-secret key: obscuring is not a security boundary, only a
// shoulder-surfing deterrent, matching the teacher's documented intent.
var cryptKey = []byte{0x9c, 0x93, 0x5b, 0x48, 0x73, 0x0a, 0x55, 0x4d}

// Obscure encodes plaintext into a string safe to write to bookmarks.toml.
func Obscure(plaintext string) (string, error) {
	block, err := des.NewCipher(cryptKey)
	if err != nil {
		return "", err
	}
	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	data := []byte(plaintext)
	padded := pad(data, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.RawURLEncoding.EncodeToString(append(iv, out...)), nil
}

// Reveal decodes a string previously produced by Obscure.
func Reveal(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := des.NewCipher(cryptKey)
	if err != nil {
		return "", err
	}
	bs := block.BlockSize()
	if len(raw) < bs || (len(raw)-bs)%bs != 0 {
		return "", errors.New("obscure: corrupt ciphertext")
	}
	iv, ct := raw[:bs], raw[bs:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return string(unpad(out)), nil
}

// MustReveal panics on error, matching the teacher's helper for
// call sites that have already validated the config at load time.
func MustReveal(encoded string) string {
	s, err := Reveal(encoded)
	if err != nil {
		panic(err)
	}
	return s
}

func pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, makePadding(padLen)...)
}

func makePadding(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(n)
	}
	return p
}

func unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := int(data[len(data)-1])
	if n > len(data) {
		return data
	}
	return data[:len(data)-n]
}
