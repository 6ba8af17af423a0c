package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Basics(t *testing.T) {
	s := New("b", "a")
	s.Add("c")
	s.AddAll("a", "d")
	assert.True(t, s.Has("d"))
	s.Delete("d")
	assert.False(t, s.Has("d"))
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(s))

	c := s.Clone()
	c.Add("z")
	assert.False(t, s.Has("z"))
}
