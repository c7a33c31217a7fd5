package schema

import (
	"fmt"
	"strings"
)

// Violation is a single schema construction failure.
type Violation struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (v *Violation) String() string {
	if v.Line == 0 {
		return v.Message
	}
	if v.File != "" {
		return fmt.Sprintf("%s %s:%d:%d", v.Message, v.File, v.Line, v.Column)
	}
	return fmt.Sprintf("%s (%d:%d)", v.Message, v.Line, v.Column)
}

// BuildError lists every violation found by Builder.Build.
type BuildError struct {
	Violations []*Violation
}

func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString("schema violations found:\n")
	for _, v := range e.Violations {
		b.WriteString("- ")
		b.WriteString(v.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Messages returns the violation messages in order.
func (e *BuildError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Message
	}
	return out
}
