// Package recipe parses !-delimited recipe files and drives the stage
// resolver with the operations they describe.
package recipe

import (
	"bufio"
	"io"
)

// bang terminates a chunk; doubled inside a chunk it decodes to a
// single literal '!'.
const bang = '!'

// ChunkReader yields the chunks of a !-delimited byte stream in order.
// A trailing unterminated non-empty chunk is still yielded.
type ChunkReader struct {
	r *bufio.Reader
}

// NewChunkReader wraps r for chunk-at-a-time reading.
func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{r: bufio.NewReader(r)}
}

// Next returns the next chunk. It returns io.EOF once the input is
// exhausted.
func (c *ChunkReader) Next() (string, error) {
	var buf []byte
	for {
		b, err := c.r.ReadByte()
		if err == io.EOF {
			if len(buf) > 0 {
				return string(buf), nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}

		if b != bang {
			buf = append(buf, b)
			continue
		}

		next, err := c.r.ReadByte()
		if err == io.EOF {
			return string(buf), nil
		}
		if err != nil {
			return "", err
		}
		if next == bang {
			buf = append(buf, bang)
			continue
		}
		if err := c.r.UnreadByte(); err != nil {
			return "", err
		}
		return string(buf), nil
	}
}
