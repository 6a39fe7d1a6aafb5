package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

func TestZScore_Value(t *testing.T) {
	tests := []struct {
		name       string
		windowSize uint
		data       []string
		want       string
		wantReady  bool
	}{
		{
			name:       "not enough data",
			windowSize: 3,
			data:       []string{"1", "2"},
		},
		{
			name:       "exact window size",
			windowSize: 4,
			data:       []string{"1", "1", "3", "3"},
			want:       "1",
			wantReady:  true,
		},
		{
			name:       "window slides",
			windowSize: 4,
			data:       []string{"100", "3", "3", "1", "1"},
			want:       "-1",
			wantReady:  true,
		},
		{
			name:       "flat window",
			windowSize: 3,
			data:       []string{"2.5", "2.5", "2.5"},
			want:       "0",
			wantReady:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := NewZScore(tt.windowSize)
			for _, v := range tt.data {
				z.AddPoint(fixed.MustParse(v))
			}

			assert.Equal(t, tt.wantReady, z.IsReady())
			value, err := z.Value()
			if !tt.wantReady {
				assert.ErrorIs(t, err, ErrNotReady)
				return
			}
			require.NoError(t, err)
			assert.True(t, value.Eq(fixed.MustParse(tt.want)), "got %s, want %s", value, tt.want)
		})
	}
}

func TestZScore_Reset(t *testing.T) {
	z := NewZScore(2)
	z.AddPoint(fixed.One)
	z.AddPoint(fixed.Two)
	require.True(t, z.IsReady())

	z.Reset()
	assert.False(t, z.IsReady())
}
