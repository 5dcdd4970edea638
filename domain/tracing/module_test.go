package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.5, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sampler(tt.rate).Description())
	}
}
