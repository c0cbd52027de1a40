package language

import (
	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// ParseQuery parses a GraphQL executable document. The returned error is
// a *gqlerror.Error for malformed input.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks doc against schema and returns all collected violations,
// never just the first.
func Validate(schema *Schema, doc *QueryDocument) ErrorList {
	return validator.Validate(schema, doc)
}

// LoadSchema parses and validates an SDL document into a usable schema.
func LoadSchema(name, source string) (*Schema, error) {
	return gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
}

// AsErrorList normalizes any error into an ErrorList for wire formatting.
func AsErrorList(err error) ErrorList {
	switch e := err.(type) {
	case ErrorList:
		return e
	case *Error:
		return ErrorList{e}
	default:
		return ErrorList{&gqlerror.Error{Message: err.Error()}}
	}
}
