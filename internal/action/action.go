// Package action models the single user action deferred across a login
// redirect and its cookie encoding, "<verb> <kind> <id>".
package action

import (
	"errors"
	"fmt"
	"strings"
)

const delimiter = " "

var (
	// ErrMalformed is returned by Decode for values that do not describe a
	// replayable action.
	ErrMalformed = errors.New("action: malformed record")
	// ErrInvalidRecord is returned by New for fields that cannot be encoded.
	ErrInvalidRecord = errors.New("action: invalid record")
)

// Verb is the operation to perform on a resource.
type Verb string

const (
	VerbLike Verb = "like"
	VerbCopy Verb = "copy"
)

// Valid reports whether v is a known verb.
func (v Verb) Valid() bool {
	switch v {
	case VerbLike, VerbCopy:
		return true
	}
	return false
}

// Kind is the type of resource an action targets.
type Kind string

const (
	KindLink    Kind = "link"
	KindSummary Kind = "summary"
)

// Valid reports whether k is a known resource kind.
func (k Kind) Valid() bool {
	return k.Collection() != ""
}

// Collection is the backend collection name for k, or "" if k is unknown.
func (k Kind) Collection() string {
	switch k {
	case KindLink:
		return "links"
	case KindSummary:
		return "summaries"
	}
	return ""
}

// Record is one pending action.
type Record struct {
	Verb Verb
	Kind Kind
	ID   string
}

// New validates the fields and returns a record that round-trips through
// Encode and Decode.
func New(verb Verb, kind Kind, id string) (Record, error) {
	r := Record{Verb: verb, Kind: kind, ID: id}
	if err := r.validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return r, nil
}

func (r Record) validate() error {
	if !r.Verb.Valid() {
		return fmt.Errorf("unknown verb %q", r.Verb)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	if r.ID == "" {
		return errors.New("empty id")
	}
	if strings.ContainsAny(r.ID, " \t\r\n;,\"/\\?#") {
		return fmt.Errorf("id %q contains a reserved character", r.ID)
	}
	return nil
}

// Encode serializes r for the redirect_action cookie.
func Encode(r Record) string {
	return strings.Join([]string{string(r.Verb), string(r.Kind), r.ID}, delimiter)
}

// Decode parses a redirect_action cookie value.
func Decode(s string) (Record, error) {
	parts := strings.Split(s, delimiter)
	if len(parts) != 3 {
		return Record{}, ErrMalformed
	}
	r := Record{Verb: Verb(parts[0]), Kind: Kind(parts[1]), ID: parts[2]}
	if err := r.validate(); err != nil {
		return Record{}, ErrMalformed
	}
	return r, nil
}

// Path is the backend endpoint that performs r, e.g. /summaries/78/like.
func (r Record) Path() string {
	return "/" + r.Kind.Collection() + "/" + r.ID + "/" + string(r.Verb)
}

func (r Record) String() string { return Encode(r) }
