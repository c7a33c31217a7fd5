package executor

import (
	"errors"
	"fmt"
	"strings"

	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/value"
)

// Path is a response path. Elements are field response keys (string) and
// list indices (int).
type Path []PathElement

type PathElement = any

func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		}
	}
	return b.String()
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// Location is a line/column position in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   value.Value    `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// ErrorsFrom converts located parse or validation errors into response
// errors.
func ErrorsFrom(list language.ErrorList) []GraphQLError {
	out := make([]GraphQLError, 0, len(list))
	for _, err := range list {
		if err == nil {
			continue
		}
		ge := GraphQLError{Message: err.Message, Extensions: err.Extensions}
		for _, loc := range err.Locations {
			ge.Locations = append(ge.Locations, Location{Line: loc.Line, Column: loc.Column})
		}
		for _, elem := range err.Path {
			switch v := elem.(type) {
			case language.PathName:
				ge.Path = append(ge.Path, string(v))
			case language.PathIndex:
				ge.Path = append(ge.Path, int(v))
			}
		}
		out = append(out, ge)
	}
	return out
}

// ErrorResult builds a result with null data, for requests rejected before
// execution.
func ErrorResult(err error) *ExecutionResult {
	if err == nil {
		return &ExecutionResult{}
	}
	var list language.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &ExecutionResult{Errors: ErrorsFrom(list)}
	}
	return &ExecutionResult{Errors: ErrorsFrom(language.ErrorList{language.AsError(err)})}
}
