package runtime

// CallStack is the ordered stack of active scope frames for one logical
// evaluation context. Each concurrent evaluation owns its own stack;
// operations are deliberately unsynchronized.
type CallStack struct {
	frames []*Environment
}

// NewCallStack creates a stack with the given frame as its base.
func NewCallStack(base *Environment) *CallStack {
	return &CallStack{frames: []*Environment{base}}
}

// Depth reports the number of active frames.
func (s *CallStack) Depth() int {
	return len(s.frames)
}

// Top returns the current frame.
func (s *CallStack) Top() *Environment {
	if len(s.frames) == 0 {
		panic("callstack: empty stack")
	}
	return s.frames[len(s.frames)-1]
}

// Swap replaces the current frame and returns the one replaced, so the
// caller can restore it on the way out.
func (s *CallStack) Swap(env *Environment) *Environment {
	if len(s.frames) == 0 {
		panic("callstack: swap on empty stack")
	}
	prev := s.frames[len(s.frames)-1]
	s.frames[len(s.frames)-1] = env
	return prev
}

// Push makes env the new current frame.
func (s *CallStack) Push(env *Environment) {
	s.frames = append(s.frames, env)
}

// Pop removes and returns the current frame.
func (s *CallStack) Pop() *Environment {
	if len(s.frames) == 0 {
		panic("callstack: pop on empty stack")
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top
}
