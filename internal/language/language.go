// Package language is the parser boundary of the engine. Query and schema
// text is parsed by gqlparser; the rest of the module only sees the AST
// aliases declared here.
package language

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

type (
	// Error is a located GraphQL error.
	Error = gqlerror.Error
	// ErrorList is an ordered list of located errors.
	ErrorList = gqlerror.List
	// Location is a line/column pair in the query text.
	Location = gqlerror.Location
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Errorf returns a located error with the given rule tag. A nil position
// produces an error without locations.
func Errorf(rule string, pos *Position, format string, args ...any) *Error {
	err := &Error{Message: fmt.Sprintf(format, args...), Rule: rule}
	if pos != nil {
		err.Locations = []Location{{Line: pos.Line, Column: pos.Column}}
	}
	return err
}

// AsError converts any error returned by the parser into a located error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	var list ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return list[0]
	}
	return &Error{Message: err.Error()}
}
