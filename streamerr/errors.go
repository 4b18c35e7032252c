package streamerr

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
)

// NamespaceStreams is the XML namespace of the stream root and the
// <stream:error> element.
const NamespaceStreams = "http://etherx.jabber.org/streams"

// NamespaceStreamErrors is the XML namespace of RFC6120 defined stream
// error conditions.
const NamespaceStreamErrors = "urn:ietf:params:xml:ns:xmpp-streams"

// Condition represents the RFC6120 stream error condition enumerate
type Condition int

const (
	// ConditionUndefinedCondition indicates an error condition not covered
	// by the other defined conditions
	ConditionUndefinedCondition Condition = iota
	// ConditionBadFormat indicates the entity sent XML that cannot be processed
	ConditionBadFormat
	// ConditionInvalidNamespace indicates the stream root carried an
	// invalid namespace or local name
	ConditionInvalidNamespace
	// ConditionNotWellFormed indicates the entity sent XML that is not well formed
	ConditionNotWellFormed
	// ConditionRestrictedXML indicates the entity sent XML features which
	// are forbidden on a stream, such as processing instructions,
	// comments or DTDs
	ConditionRestrictedXML
	// ConditionUnsupportedVersion indicates the version attribute of the
	// stream header could not be parsed or is not supported
	ConditionUnsupportedVersion
)

func (c Condition) String() string {
	switch c {
	case ConditionUndefinedCondition:
		return "undefined-condition"
	case ConditionBadFormat:
		return "bad-format"
	case ConditionInvalidNamespace:
		return "invalid-namespace"
	case ConditionNotWellFormed:
		return "not-well-formed"
	case ConditionRestrictedXML:
		return "restricted-xml"
	case ConditionUnsupportedVersion:
		return "unsupported-version"
	default:
		return fmt.Sprintf("Condition(%d)", int(c))
	}
}

func (c Condition) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Condition) UnmarshalText(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "undefined-condition":
		*c = ConditionUndefinedCondition
	case "bad-format":
		*c = ConditionBadFormat
	case "invalid-namespace":
		*c = ConditionInvalidNamespace
	case "not-well-formed":
		*c = ConditionNotWellFormed
	case "restricted-xml":
		*c = ConditionRestrictedXML
	case "unsupported-version":
		*c = ConditionUnsupportedVersion
	default:
		return errors.New("unknown value")
	}
	return nil
}

// Error represents an XMPP stream error.
//
// Stream errors are fatal to the document being processed; they are
// distinct from per-stanza faults, which the stream Reader captures and
// reports for recovery.
type Error struct {
	Condition Condition
	Text      string
}

func (e Error) Error() string {
	s := "stream error condition:" + e.Condition.String()
	if e.Text != "" {
		s += " " + e.Text
	}
	return s
}

// MarshalXML encodes the error as an RFC6120 <error> element in the
// streams namespace, carrying the defined-condition element and any
// descriptive text, implementing xml.Marshaler.
func (e Error) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	se := xml.StartElement{Name: xml.Name{Space: NamespaceStreams, Local: "error"}}
	err := enc.EncodeToken(se)
	if err == nil {
		cond := xml.StartElement{Name: xml.Name{Space: NamespaceStreamErrors, Local: e.Condition.String()}}
		err = enc.EncodeToken(cond)
		if err == nil {
			err = enc.EncodeToken(cond.End())
		}
	}
	if err == nil && e.Text != "" {
		text := xml.StartElement{Name: xml.Name{Space: NamespaceStreamErrors, Local: "text"}}
		if err = enc.EncodeToken(text); err == nil {
			err = enc.EncodeToken(xml.CharData(e.Text))
		}
		if err == nil {
			err = enc.EncodeToken(text.End())
		}
	}
	if err == nil {
		err = enc.EncodeToken(se.End())
	}
	return err
}

// IsCondition reports whether err is, or wraps, a stream Error carrying
// the condition c.
func IsCondition(err error, c Condition) bool {
	var se *Error
	return errors.As(err, &se) && se.Condition == c
}

func UndefinedCondition(opts ...Option) *Error {
	e := &Error{Condition: ConditionUndefinedCondition}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func BadFormat(opts ...Option) *Error {
	e := &Error{Condition: ConditionBadFormat}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func InvalidNamespace(opts ...Option) *Error {
	e := &Error{Condition: ConditionInvalidNamespace}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NotWellFormed(opts ...Option) *Error {
	e := &Error{Condition: ConditionNotWellFormed}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func RestrictedXML(opts ...Option) *Error {
	e := &Error{Condition: ConditionRestrictedXML}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func UnsupportedVersion(opts ...Option) *Error {
	e := &Error{Condition: ConditionUnsupportedVersion}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
