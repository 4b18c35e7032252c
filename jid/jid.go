// Package jid provides the XMPP address (Jabber ID) type used in stream
// header attributes and stanza routing.
package jid

import (
	"strings"

	"github.com/pkg/errors"
)

// maxPartLen is the RFC6122 limit of 1023 bytes per JID part.
const maxPartLen = 1023

// JID is an XMPP address of the form [local@]domain[/resource].
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// Parse returns the JID for the address string s.
func Parse(s string) (JID, error) {
	var j JID
	if s == "" {
		return j, errors.New("jid: empty address")
	}
	rest := s
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		j.Resource = rest[idx+1:]
		rest = rest[:idx]
		if j.Resource == "" {
			return JID{}, errors.Errorf("jid: empty resourcepart in %q", s)
		}
	}
	if idx := strings.IndexByte(rest, '@'); idx >= 0 {
		j.Local = rest[:idx]
		rest = rest[idx+1:]
		if j.Local == "" {
			return JID{}, errors.Errorf("jid: empty localpart in %q", s)
		}
	}
	j.Domain = rest
	if err := j.validate(); err != nil {
		return JID{}, err
	}
	return j, nil
}

// MustParse is like Parse but panics on invalid input.
// It simplifies safe initialization of JID values from constants.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

func (j JID) validate() error {
	if j.Domain == "" {
		return errors.New("jid: empty domainpart")
	}
	if strings.ContainsAny(j.Domain, "@/") {
		return errors.Errorf("jid: invalid domainpart %q", j.Domain)
	}
	for _, part := range []string{j.Local, j.Domain, j.Resource} {
		if len(part) > maxPartLen {
			return errors.Errorf("jid: part exceeds %d bytes", maxPartLen)
		}
		if strings.ContainsAny(part, " \t\r\n") {
			return errors.Errorf("jid: whitespace in part %q", part)
		}
	}
	if strings.ContainsAny(j.Local, "@/") {
		return errors.Errorf("jid: invalid localpart %q", j.Local)
	}
	return nil
}

// String returns the canonical address form of the JID
func (j JID) String() string {
	var b strings.Builder
	if j.Local != "" {
		b.WriteString(j.Local)
		b.WriteByte('@')
	}
	b.WriteString(j.Domain)
	if j.Resource != "" {
		b.WriteByte('/')
		b.WriteString(j.Resource)
	}
	return b.String()
}

// Bare returns the JID without its resourcepart
func (j JID) Bare() JID { return JID{Local: j.Local, Domain: j.Domain} }

// IsZero reports whether the JID is the zero value
func (j JID) IsZero() bool { return j == JID{} }

// Equal reports whether j and o are the same address
func (j JID) Equal(o JID) bool { return j == o }
