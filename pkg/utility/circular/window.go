package circular

import "github.com/peter-kozarec/arbiter/pkg/utility/fixed"

// Window is a rolling window of decimal points with running sums, so mean
// and variance are updated in constant time per push.
type Window struct {
	b *Buffer[fixed.Point]

	sum        fixed.Point
	sumSquares fixed.Point
}

func NewWindow(capacity uint) *Window {
	return &Window{
		b:          NewBuffer[fixed.Point](capacity),
		sum:        fixed.Zero,
		sumSquares: fixed.Zero,
	}
}

func (w *Window) Push(v fixed.Point) {
	if evicted, ok := w.b.Push(v); ok {
		w.sum = w.sum.Sub(evicted)
		w.sumSquares = w.sumSquares.Sub(evicted.Mul(evicted))
	}
	w.sum = w.sum.Add(v)
	w.sumSquares = w.sumSquares.Add(v.Mul(v))
}

func (w *Window) Size() uint          { return w.b.Size() }
func (w *Window) IsFull() bool        { return w.b.IsFull() }
func (w *Window) Latest() fixed.Point { return w.b.First() }
func (w *Window) Sum() fixed.Point    { return w.sum }

func (w *Window) Mean() fixed.Point {
	if w.b.IsEmpty() {
		return fixed.Zero
	}
	return w.sum.DivInt(int(w.b.Size()))
}

// Variance is the population variance of the held points.
func (w *Window) Variance() fixed.Point {
	if w.b.IsEmpty() {
		return fixed.Zero
	}
	mean := w.Mean()
	variance := w.sumSquares.DivInt(int(w.b.Size())).Sub(mean.Mul(mean))
	if variance.IsNegative() {
		// rounding residue of the running sums
		return fixed.Zero
	}
	return variance
}

func (w *Window) StdDev() fixed.Point {
	variance := w.Variance()
	if variance.IsZero() {
		return fixed.Zero
	}
	return variance.Sqrt()
}

func (w *Window) Reset() {
	w.b.Reset()
	w.sum = fixed.Zero
	w.sumSquares = fixed.Zero
}
