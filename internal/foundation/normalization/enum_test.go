package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color string

const (
	red  color = "red"
	blue color = "blue"
)

func TestEnum_Normalize(t *testing.T) {
	e := NewEnum("color", red, []color{red, blue}, map[string]color{"azure": blue})

	tests := []struct {
		raw  string
		want color
	}{
		{"red", red},
		{"  BLUE ", blue},
		{"Azure", blue},
		{"", red},
	}
	for _, tt := range tests {
		got, err := e.Normalize(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestEnum_NormalizeRejectsUnknown(t *testing.T) {
	e := NewEnum("color", red, []color{red, blue}, nil)
	got, err := e.Normalize("green")
	require.Error(t, err)
	assert.Equal(t, red, got)
	assert.Contains(t, err.Error(), "invalid color")
	assert.Contains(t, err.Error(), "blue, red")
}

func TestEnum_Valid(t *testing.T) {
	e := NewEnum("color", red, []color{red, blue}, nil)
	assert.True(t, e.Valid(blue))
	assert.False(t, e.Valid(color("green")))
	assert.Equal(t, []string{"blue", "red"}, e.Keys())
}
