package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#22c55e", color.NRGBA{R: 0x22, G: 0xc5, B: 0x5e, A: 0xff}},
		{"3b82f6", color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}},
		{"#f00", color.NRGBA{R: 0xff, A: 0xff}},
		{"#00000080", color.NRGBA{A: 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColorInvalid(t *testing.T) {
	for _, in := range []string{"", "red", "#12345", "#gggggg"} {
		got, err := ParseColor(in)
		assert.Error(t, err, in)
		assert.Equal(t, Fallback, got)
	}
	assert.Equal(t, Fallback, MustColor("nope"))
}
