package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ConversionStatus
		allowed  bool
	}{
		{ConversionPending, ConversionProcessing, true},
		{ConversionPending, ConversionFailed, true},
		{ConversionPending, ConversionCompleted, false},
		{ConversionProcessing, ConversionCompleted, true},
		{ConversionProcessing, ConversionFailed, true},
		{ConversionProcessing, ConversionPending, true},
		{ConversionCompleted, ConversionProcessing, false},
		{ConversionCompleted, ConversionFailed, false},
		{ConversionFailed, ConversionPending, true},
		{ConversionFailed, ConversionCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestConversionStatusValid(t *testing.T) {
	assert.True(t, ConversionPending.Valid())
	assert.True(t, ConversionCompleted.Valid())
	assert.False(t, ConversionStatus("uploaded").Valid())
	assert.False(t, ConversionStatus("").Valid())
}
