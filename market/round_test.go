package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     float64
		places int32
		want   float64
	}{
		{2.675, 2, 2.68},
		{-2.675, 2, -2.68},
		{94800.004, 2, 94800},
		{0.123456789, 6, 0.123457},
		{5, 2, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, tt.places), "%v", tt.in)
	}
	assert.Equal(t, 10.45, Cents(10.4506))
}
