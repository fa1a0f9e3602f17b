// Package id implements kind-tagged entity identifiers.
//
// An identifier is a ULID tagged at the type level with the kind of entity it
// refers to. The canonical text form is "<kind>-<ulid>", for example
// "board-01HBCCGK3MH83RJ4Y8AVECQ5W9". The kind only exists in the Go type, so
// an ID[Board] can never be passed where an ID[User] is expected, and parsing
// text of a different kind fails instead of coercing.
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Separator splits the kind prefix from the ULID in the text form.
const Separator = "-"

// Kind is implemented by the zero-size marker types that tag identifiers.
type Kind interface {
	comparable
	KindName() string
}

// User tags identifiers of users.
type User struct{}

// Board tags identifiers of boards.
type Board struct{}

// Column tags identifiers of board columns.
type Column struct{}

// Card tags identifiers of cards.
type Card struct{}

func (User) KindName() string   { return "user" }
func (Board) KindName() string  { return "board" }
func (Column) KindName() string { return "column" }
func (Card) KindName() string   { return "card" }

// Kinds lists the canonical names of every entity kind.
var Kinds = []string{User{}.KindName(), Board{}.KindName(), Column{}.KindName(), Card{}.KindName()}

// ID is a unique reference to an entity of kind K.
//
// Equality and hashing depend on the ULID only; IDs are comparable and can be
// used directly as map keys.
type ID[K Kind] struct {
	value ulid.ULID
}

// New returns a fresh, time-ordered identifier.
func New[K Kind]() ID[K] {
	return ID[K]{value: ulid.Make()}
}

// FromULID wraps an existing ULID.
func FromULID[K Kind](v ulid.ULID) ID[K] {
	return ID[K]{value: v}
}

// Parse decodes the canonical text form of an identifier of kind K.
func Parse[K Kind](s string) (ID[K], error) {
	var k K
	prefix, rest, ok := strings.Cut(s, Separator)
	if !ok {
		return ID[K]{}, ErrMissingPrefix
	}
	if prefix != k.KindName() {
		return ID[K]{}, &KindMismatchError{Expected: k.KindName(), Actual: prefix}
	}
	v, err := ulid.ParseStrict(rest)
	if err != nil {
		return ID[K]{}, &MalformedValueError{Value: rest, Err: err}
	}
	return ID[K]{value: v}, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures and tests.
func MustParse[K Kind](s string) ID[K] {
	v, err := Parse[K](s)
	if err != nil {
		panic(fmt.Sprintf("id: MustParse(%q): %v", s, err))
	}
	return v
}

// KindOf returns the kind prefix of s after checking that s is a well-formed
// identifier of one of the known kinds.
func KindOf(s string) (string, error) {
	prefix, rest, ok := strings.Cut(s, Separator)
	if !ok {
		return "", ErrMissingPrefix
	}
	known := false
	for _, k := range Kinds {
		if k == prefix {
			known = true
			break
		}
	}
	if !known {
		return "", &KindMismatchError{Expected: strings.Join(Kinds, "|"), Actual: prefix}
	}
	if _, err := ulid.ParseStrict(rest); err != nil {
		return "", &MalformedValueError{Value: rest, Err: err}
	}
	return prefix, nil
}

func (i ID[K]) String() string {
	var k K
	return k.KindName() + Separator + i.value.String()
}

// Kind returns the canonical kind name of the identifier.
func (i ID[K]) Kind() string {
	var k K
	return k.KindName()
}

// ULID returns the underlying value.
func (i ID[K]) ULID() ulid.ULID { return i.value }

// IsZero reports whether i is the zero identifier.
func (i ID[K]) IsZero() bool { return i.value == (ulid.ULID{}) }

// Compare orders identifiers by their ULID, which is creation-time order.
func (i ID[K]) Compare(o ID[K]) int { return i.value.Compare(o.value) }

func (i ID[K]) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *ID[K]) UnmarshalText(b []byte) error {
	v, err := Parse[K](string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Value stores identifiers as their canonical string.
func (i ID[K]) Value() (driver.Value, error) {
	return i.String(), nil
}

// Scan accepts the canonical string as string or []byte.
func (i *ID[K]) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	case nil:
		return errors.New("id: cannot scan NULL")
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
