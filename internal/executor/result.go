package executor

import (
	"errors"
	"strconv"
	"strings"

	language "github.com/hanpama/kanbangraph/internal/language"
)

// Path addresses a response position: field names as string, list indices
// as int.
type Path []any

func (p Path) String() string {
	var b strings.Builder
	for _, el := range p {
		switch v := el.(type) {
		case string:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func (p Path) with(el any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, el)
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is one entry of the response errors list.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e Error) Error() string { return e.Message }

type extender interface {
	Extensions() map[string]any
}

// NewError wraps err for the response at path, keeping its extensions.
func NewError(err error, path Path) Error {
	out := Error{Message: err.Error(), Path: path}
	var ext extender
	if errors.As(err, &ext) {
		out.Extensions = ext.Extensions()
	}
	return out
}

func locate(fields []*language.Field) []Location {
	if len(fields) == 0 || fields[0].Position == nil {
		return nil
	}
	p := fields[0].Position
	return []Location{{Line: p.Line, Column: p.Column}}
}

// Response is the result of one operation. Data is nil only when the
// operation could not start.
type Response struct {
	Data   any     `json:"data"`
	Errors []Error `json:"errors,omitempty"`
}
