package runner

// Command produces the argument vector passed to the tool, excluding the
// tool name itself. Implementations must return the same arguments every
// time they are called.
type Command interface {
	Args() []string
}

// Args is the plain Command: a fixed, ordered argument list.
type Args []string

// Args returns a copy so the descriptor cannot be mutated through the result.
func (a Args) Args() []string {
	return append([]string(nil), a...)
}
