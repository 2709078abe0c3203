package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"42", []string{"42"}},
		{"42,43", []string{"42", "43"}},
		{" 42 , ,43, ", []string{"42", "43"}},
		{"", nil},
		{" , ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, splitIDs(tt.raw))
		})
	}
}
