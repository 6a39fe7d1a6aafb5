package journal

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

const (
	fieldSequence protowire.Number = iota + 1
	fieldOrderId
	fieldKind
	fieldSide
	fieldPrice
	fieldSize
	fieldFee
	fieldRealizedPnL
	fieldSymbol
	fieldBar
	fieldTimeStamp
)

var ErrCorrupted = errors.New("corrupted journal")

// AppendFill appends the wire form of fill to b. Decimals are written in
// their trimmed text form so that equal values always encode the same way.
func AppendFill(b []byte, fill common.Fill) []byte {
	b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(fill.Sequence))
	b = protowire.AppendTag(b, fieldOrderId, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(fill.OrderId))
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(fill.Kind))
	b = protowire.AppendTag(b, fieldSide, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(fill.Side))
	b = appendPoint(b, fieldPrice, fill.Price)
	b = appendPoint(b, fieldSize, fill.Size)
	b = appendPoint(b, fieldFee, fill.Fee)
	b = appendPoint(b, fieldRealizedPnL, fill.RealizedPnL)
	b = protowire.AppendTag(b, fieldSymbol, protowire.BytesType)
	b = protowire.AppendString(b, fill.Symbol)
	b = protowire.AppendTag(b, fieldBar, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(fill.Bar))
	b = protowire.AppendTag(b, fieldTimeStamp, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(fill.TimeStamp.UnixNano()))
	return b
}

func appendPoint(b []byte, num protowire.Number, p fixed.Point) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, p.Trim().String())
}

// ConsumeFill parses one fill written by AppendFill.
func ConsumeFill(b []byte) (common.Fill, error) {
	var fill common.Fill
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fill, fmt.Errorf("%w: %v", ErrCorrupted, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fill, fmt.Errorf("%w: field %d: %v", ErrCorrupted, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldSequence:
				fill.Sequence = protowire.DecodeZigZag(v)
			case fieldOrderId:
				fill.OrderId = protowire.DecodeZigZag(v)
			case fieldKind:
				fill.Kind = common.OrderKind(v)
			case fieldSide:
				fill.Side = common.OrderSide(v)
			case fieldBar:
				fill.Bar = protowire.DecodeZigZag(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fill, fmt.Errorf("%w: field %d: %v", ErrCorrupted, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldSymbol {
				fill.Symbol = v
				continue
			}
			p, err := fixed.Parse(v)
			if err != nil {
				return fill, fmt.Errorf("%w: field %d: %v", ErrCorrupted, num, err)
			}
			switch num {
			case fieldPrice:
				fill.Price = p
			case fieldSize:
				fill.Size = p
			case fieldFee:
				fill.Fee = p
			case fieldRealizedPnL:
				fill.RealizedPnL = p
			}
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fill, fmt.Errorf("%w: field %d: %v", ErrCorrupted, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldTimeStamp {
				fill.TimeStamp = time.Unix(0, int64(v)).UTC()
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fill, fmt.Errorf("%w: field %d: %v", ErrCorrupted, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return fill, nil
}
