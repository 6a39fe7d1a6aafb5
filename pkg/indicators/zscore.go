package indicators

import (
	"errors"

	"github.com/peter-kozarec/arbiter/pkg/utility/circular"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

var ErrNotReady = errors.New("not enough data")

// ZScore measures how far the latest point sits from the rolling mean, in
// population standard deviations.
type ZScore struct {
	window *circular.Window
}

func NewZScore(windowSize uint) *ZScore {
	return &ZScore{
		window: circular.NewWindow(windowSize),
	}
}

func (z *ZScore) AddPoint(p fixed.Point) {
	z.window.Push(p)
}

func (z *ZScore) Value() (fixed.Point, error) {
	if !z.IsReady() {
		return fixed.Point{}, ErrNotReady
	}

	stdDev := z.window.StdDev()
	if stdDev.IsZero() {
		return fixed.Zero, nil
	}
	return z.window.Latest().Sub(z.window.Mean()).Div(stdDev), nil
}

func (z *ZScore) IsReady() bool {
	return z.window.IsFull()
}

func (z *ZScore) Reset() {
	z.window.Reset()
}
