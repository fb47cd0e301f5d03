package cpu

const (
	STACK_LIMIT = 16 // Maximum stack depth
)

// Stack holds the return addresses of nested subroutine calls. It is a
// fixed array, so calls never allocate.
type Stack struct {
	Data  [STACK_LIMIT]uint16
	Depth int
}

func (s *Stack) Push(value uint16) (ok bool) {
	if s.Full() {
		return
	}
	s.Data[s.Depth] = value
	s.Depth++
	ok = true
	return
}

func (s *Stack) Pop() (value uint16, ok bool) {
	value, ok = s.Peek()
	if ok {
		s.Depth--
	}
	return
}

func (s *Stack) Empty() bool {
	return s.Depth == 0
}

func (s *Stack) Full() bool {
	return s.Depth == STACK_LIMIT
}

func (s *Stack) Peek() (value uint16, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[s.Depth-1], true
}

func (s *Stack) Reset() {
	s.Depth = 0
}
