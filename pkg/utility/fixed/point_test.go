package fixed

import (
	"math"
	"testing"
)

func TestFixedPoint_FromInt64(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		scale int
		want  string
	}{
		{"zero", 0, 0, "0"},
		{"positive", 123, 0, "123"},
		{"negative", -456, 0, "-456"},
		{"with scale", 123, 2, "1.23"},
		{"negative with scale", -456, 3, "-0.456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromInt64(tt.value, tt.scale)
			if got.String() != tt.want {
				t.Errorf("FromInt64(%d, %d) = %s; want %s", tt.value, tt.scale, got.String(), tt.want)
			}
		})
	}
}

func TestFixedPoint_FromFloat64Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("FromFloat64(NaN) did not panic")
		}
	}()
	FromFloat64(math.NaN())
}

func TestFixedPoint_Parse(t *testing.T) {
	tests := []struct {
		in      string
		want    Point
		wantErr bool
	}{
		{"101.0", FromInt(101, 0), false},
		{"100.5", FromInt(1005, 1), false},
		{"-0.0005", FromInt(-5, 4), false},
		{"abc", Point{}, true},
		{"", Point{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Eq(tt.want) {
				t.Errorf("Parse(%q) = %s; want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFixedPoint_UnmarshalText(t *testing.T) {
	var p Point
	if err := p.UnmarshalText([]byte("0.0005")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if !p.Eq(FromInt(5, 4)) {
		t.Errorf("UnmarshalText = %s; want 0.0005", p)
	}
	if err := p.UnmarshalText([]byte("x")); err == nil {
		t.Error("expected error for invalid text")
	}
}

func TestFixedPoint_Arithmetic(t *testing.T) {
	a := FromInt(1010, 1)
	b := FromInt(1005, 1)

	if got := a.Sub(b); !got.Eq(FromInt(5, 1)) {
		t.Errorf("Sub = %s; want 0.5", got)
	}
	if got := a.Add(b); !got.Eq(FromInt(2015, 1)) {
		t.Errorf("Add = %s; want 201.5", got)
	}
	if got := FromInt(2020, 0).DivInt(20); !got.Eq(FromInt(101, 0)) {
		t.Errorf("DivInt = %s; want 101", got)
	}
	if got := FromInt(4, 0).Mul(FromInt(15, 0)); !got.Eq(FromInt(60, 0)) {
		t.Errorf("Mul = %s; want 60", got)
	}
}

func TestFixedPoint_Comparisons(t *testing.T) {
	a := FromInt(100, 0)
	b := FromInt(10000, 2)
	c := FromInt(101, 0)

	if !a.Eq(b) {
		t.Error("100 should equal 100.00")
	}
	if !a.Lt(c) || !c.Gt(a) || !a.Lte(b) || !a.Gte(b) {
		t.Error("ordering comparisons are inconsistent")
	}
	if a.Sign() != 1 || a.Neg().Sign() != -1 || Zero.Sign() != 0 {
		t.Error("unexpected sign")
	}
	if !a.IsPositive() || !a.Neg().IsNegative() || Zero.IsPositive() {
		t.Error("unexpected IsPositive / IsNegative result")
	}
}

func TestFixedPoint_MinMax(t *testing.T) {
	a := FromInt(101, 0)
	b := FromInt(1015, 1)

	if got := Min(a, b); !got.Eq(a) {
		t.Errorf("Min = %s; want %s", got, a)
	}
	if got := Max(a, b); !got.Eq(b) {
		t.Errorf("Max = %s; want %s", got, b)
	}
}

func TestFixedPoint_Trim(t *testing.T) {
	if got := FromInt(10100, 2).Trim().String(); got != "101" {
		t.Errorf("Trim = %s; want 101", got)
	}
	if got := FromInt(10150, 2).Trim().String(); got != "101.5" {
		t.Errorf("Trim = %s; want 101.5", got)
	}
}

func TestFixedPoint_DivPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("division by zero did not panic")
		}
	}()
	One.Div(Zero)
}
