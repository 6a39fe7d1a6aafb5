package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/peter-kozarec/arbiter/pkg/common"
)

// Journal records fills as length-delimited wire records. Two sessions that
// produced the same fills have byte-identical journals.
type Journal struct {
	mu    sync.Mutex
	buf   []byte
	count int
}

func New() *Journal {
	return &Journal{}
}

func (j *Journal) Append(fill common.Fill) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.buf = protowire.AppendBytes(j.buf, AppendFill(nil, fill))
	j.count++
}

// OnFill lets the journal subscribe to fill events.
func (j *Journal) OnFill(_ context.Context, fill common.Fill) {
	j.Append(fill)
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

func (j *Journal) Bytes() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()

	b := make([]byte, len(j.buf))
	copy(b, j.buf)
	return b
}

// Digest is the hex sha256 of the journal bytes.
func (j *Journal) Digest() string {
	sum := sha256.Sum256(j.Bytes())
	return hex.EncodeToString(sum[:])
}

func (j *Journal) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(j.Bytes())
	return int64(n), err
}

// Encode is a one-shot journal of fills.
func Encode(fills []common.Fill) []byte {
	j := New()
	for _, fill := range fills {
		j.Append(fill)
	}
	return j.buf
}

func Digest(fills []common.Fill) string {
	sum := sha256.Sum256(Encode(fills))
	return hex.EncodeToString(sum[:])
}

func Decode(b []byte) ([]common.Fill, error) {
	var fills []common.Fill
	for len(b) > 0 {
		record, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fills, fmt.Errorf("%w: record %d: %v", ErrCorrupted, len(fills), protowire.ParseError(n))
		}
		b = b[n:]

		fill, err := ConsumeFill(record)
		if err != nil {
			return fills, fmt.Errorf("record %d: %w", len(fills), err)
		}
		fills = append(fills, fill)
	}
	return fills, nil
}
