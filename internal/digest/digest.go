// Package digest derives the SHA-512 identities used throughout the
// cache. Stage identity is an explicit function of its inputs, so a
// change to any input yields a new digest and therefore a new cache
// slot, with no versioning scheme required.
package digest

import (
	_ "crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	godigest "github.com/opencontainers/go-digest"
)

// fileBlockSize is the buffer used when hashing files.
const fileBlockSize = 512 * 1024

// String returns the lowercase hex SHA-512 of the UTF-8 bytes of s.
func String(s string) string {
	return godigest.SHA512.FromString(s).Encoded()
}

// Bytes returns the lowercase hex SHA-512 of b.
func Bytes(b []byte) string {
	return godigest.SHA512.FromBytes(b).Encoded()
}

// Reader hashes r to EOF and returns the lowercase hex SHA-512.
func Reader(r io.Reader) (string, error) {
	d := godigest.SHA512.Digester()
	buf := make([]byte, fileBlockSize)
	if _, err := io.CopyBuffer(d.Hash(), r, buf); err != nil {
		return "", err
	}
	return d.Digest().Encoded(), nil
}

// File returns the lowercase hex SHA-512 of the file's content.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()
	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

// Digests aggregates a list of hex digests: the hex-decoded bytes of
// each element are concatenated in order and hashed. Order-sensitive.
func Digests(hexDigests []string) (string, error) {
	d := godigest.SHA512.Digester()
	for _, h := range hexDigests {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return "", fmt.Errorf("decoding digest %q: %w", h, err)
		}
		if _, err := d.Hash().Write(raw); err != nil {
			return "", err
		}
	}
	return d.Digest().Encoded(), nil
}

// Stage derives a stage digest from the stage type and its canonical key.
func Stage(stageType, stageKey string) string {
	return String(stageType + "\n" + stageKey)
}
