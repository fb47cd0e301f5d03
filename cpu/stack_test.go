package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStack(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	assert.True(s.Empty())
	assert.False(s.Full())

	_, ok := s.Peek()
	assert.False(ok)
	_, ok = s.Pop()
	assert.False(ok)

	assert.True(s.Push(0x202))
	assert.True(s.Push(0x3fe))
	assert.Equal([]uint16{0x202, 0x3fe}, s.Data[:s.Depth])

	ret, ok := s.Peek()
	assert.True(ok)
	assert.Equal(uint16(0x3fe), ret)
	assert.Equal(2, s.Depth)

	ret, ok = s.Pop()
	assert.True(ok)
	assert.Equal(uint16(0x3fe), ret)

	ret, ok = s.Pop()
	assert.True(ok)
	assert.Equal(uint16(0x202), ret)
	assert.True(s.Empty())
}

func TestStack_Limit(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	for depth := range STACK_LIMIT {
		assert.False(s.Full(), depth)
		assert.True(s.Push(uint16(0x200+2*depth)), depth)
	}
	assert.True(s.Full())

	// A full stack refuses the push and keeps its contents.
	assert.False(s.Push(0xfff))
	assert.Equal(STACK_LIMIT, s.Depth)
	top, ok := s.Peek()
	assert.True(ok)
	assert.Equal(uint16(0x200+2*(STACK_LIMIT-1)), top)

	for depth := STACK_LIMIT - 1; depth >= 0; depth-- {
		ret, ok := s.Pop()
		assert.True(ok)
		assert.Equal(uint16(0x200+2*depth), ret)
	}
	_, ok = s.Pop()
	assert.False(ok)
}

func TestStack_Reset(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		items []uint16
	}){
		{"empty", nil},
		{"one", []uint16{0x204}},
		{"full", make([]uint16, STACK_LIMIT)},
	}

	for _, entry := range table {
		s := &Stack{}
		for _, item := range entry.items {
			s.Push(item)
		}
		s.Reset()
		assert.True(s.Empty(), entry.name)
		assert.True(s.Push(0x200), entry.name)
	}
}
