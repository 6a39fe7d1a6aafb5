package journal

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

func testFills() []common.Fill {
	ts := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	return []common.Fill{
		{
			Sequence:    1,
			OrderId:     7,
			Kind:        common.OrderKindMarketBuy,
			Side:        common.OrderSideBuy,
			Price:       fixed.MustParse("101.0"),
			Size:        fixed.MustParse("10"),
			Fee:         fixed.MustParse("0.5"),
			RealizedPnL: fixed.Zero,
			Symbol:      "AAA",
			Bar:         0,
			TimeStamp:   ts,
		},
		{
			Sequence:    2,
			OrderId:     8,
			Kind:        common.OrderKindStopLossTime,
			Side:        common.OrderSideSell,
			Price:       fixed.MustParse("99.75"),
			Size:        fixed.MustParse("10"),
			Fee:         fixed.MustParse("0.5"),
			RealizedPnL: fixed.MustParse("-12.5"),
			Symbol:      "AAA",
			Bar:         5,
			TimeStamp:   ts.Add(5 * time.Minute),
		},
	}
}

func TestDecode(t *testing.T) {
	fills := testFills()

	decoded, err := Decode(Encode(fills))
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	for i := range fills {
		assert.Equal(t, fills[i].Sequence, decoded[i].Sequence)
		assert.Equal(t, fills[i].OrderId, decoded[i].OrderId)
		assert.Equal(t, fills[i].Kind, decoded[i].Kind)
		assert.Equal(t, fills[i].Side, decoded[i].Side)
		assert.Equal(t, fills[i].Symbol, decoded[i].Symbol)
		assert.Equal(t, fills[i].Bar, decoded[i].Bar)
		assert.True(t, fills[i].TimeStamp.Equal(decoded[i].TimeStamp))
		assert.True(t, fills[i].Price.Eq(decoded[i].Price))
		assert.True(t, fills[i].RealizedPnL.Eq(decoded[i].RealizedPnL))
	}
}

func TestDigest_ScaleInsensitive(t *testing.T) {
	a := testFills()
	b := testFills()
	b[0].Price = fixed.MustParse("101.000")
	b[1].Fee = fixed.MustParse("0.50")

	assert.Equal(t, Encode(a), Encode(b))
	assert.Equal(t, Digest(a), Digest(b))
}

func TestDigest_Sensitive(t *testing.T) {
	a := testFills()
	b := testFills()
	b[1].Price = fixed.MustParse("99.76")

	assert.NotEqual(t, Digest(a), Digest(b))
	assert.NotEqual(t, Digest(a), Digest(a[:1]))
}

func TestJournal_OnFill(t *testing.T) {
	j := New()
	for _, fill := range testFills() {
		j.OnFill(context.Background(), fill)
	}

	assert.Equal(t, 2, j.Len())
	assert.Equal(t, Digest(testFills()), j.Digest())

	var out bytes.Buffer
	n, err := j.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), n)
	assert.Equal(t, Encode(testFills()), out.Bytes())
}

func TestDecode_Corrupted(t *testing.T) {
	b := Encode(testFills())

	_, err := Decode(b[:len(b)-3])
	assert.ErrorIs(t, err, ErrCorrupted)
}
