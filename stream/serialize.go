package stream

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"sort"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/pkg/errors"

	"github.com/andaru/xmppstream/xmlutil"
)

// SerializationError indicates a stanza could not be encoded, typically
// because a text value contains a character illegal in XML. The failure
// is local to the one Send call which returned it; no partial bytes are
// written and the Writer state is not corrupted.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "stanza serialization failed: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }

// renderName returns the wire rendering of a namespace qualified name
// against the prefix bindings: unprefixed for the default binding or
// no-namespace names, otherwise the shortest matching prefix. Names in
// unbound namespaces render unprefixed; the caller declares the
// namespace locally.
func renderName(name xml.Name, prefixes xmlutil.PrefixMap) string {
	if name.Space == "" {
		return name.Local
	}
	if pfx, ok := prefixes.PrefixOf(name.Space); ok && pfx != "" {
		return pfx + ":" + name.Local
	}
	return name.Local
}

// attrTag returns the wire rendering of an attribute name emitted by
// xmlutil.PrefixMap.Attr
func attrTag(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func writeAttr(w *bufio.Writer, name, value string) {
	w.WriteByte(' ')
	w.WriteString(name)
	w.WriteString(`="`)
	w.WriteString(escape(value))
	w.WriteByte('"')
}

// escape returns s with XML markup characters replaced by entity
// references. Character legality is checked separately; escape never
// substitutes illegal characters.
func escape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// checkChars verifies every rune of s is legal in XML 1.0 content
// (the Char production: #x9, #xA, #xD, #x20-#xD7FF, #xE000-#xFFFD,
// #x10000-#x10FFFF).
func checkChars(s string) error {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return errors.Errorf("invalid UTF-8 at offset %d", i)
		}
		if !legalChar(r) {
			return errors.Errorf("character %U is not allowed in XML", r)
		}
		i += size
	}
	return nil
}

func legalChar(r rune) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// serializeStanza encodes the element n (or the root element of a
// stanza document) into a byte slice, rendering names against the
// stream's prefix bindings. Nothing is written on error.
func serializeStanza(n *xmlquery.Node, prefixes xmlutil.PrefixMap, sorted bool) ([]byte, error) {
	if n == nil {
		return nil, errors.New("nil stanza")
	}
	if n.Type == xmlquery.DocumentNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				n = c
				break
			}
		}
	}
	if n.Type != xmlquery.ElementNode {
		return nil, errors.New("stanza is not an element node")
	}
	var buf bytes.Buffer
	if err := writeElement(&buf, n, prefixes, sorted); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeElement(buf *bytes.Buffer, n *xmlquery.Node, prefixes xmlutil.PrefixMap, sorted bool) error {
	if n.Data == "" {
		return errors.New("element has no local name")
	}
	effective := prefixes
	name := xml.Name{Space: n.NamespaceURI, Local: n.Data}
	tag := renderName(name, effective)

	var declare bool
	if n.NamespaceURI != "" {
		if _, ok := effective.PrefixOf(n.NamespaceURI); !ok {
			// unbound namespace: declare it as the element's default
			// binding, inherited by the element's children
			effective = effective.Clone()
			effective[""] = n.NamespaceURI
			declare = true
		}
	} else if effective.Namespace("") != "" {
		// undeclare an inherited default binding for a no-namespace element
		effective = effective.Clone()
		effective[""] = ""
		declare = true
	}

	buf.WriteByte('<')
	buf.WriteString(tag)
	if declare {
		buf.WriteString(` xmlns="`)
		buf.WriteString(escape(n.NamespaceURI))
		buf.WriteByte('"')
	}

	attrs := make([]string, 0, len(n.Attr))
	for _, a := range n.Attr {
		aname, err := renderAttrName(a, effective)
		if err != nil {
			return err
		}
		if err := checkChars(a.Value); err != nil {
			return errors.Wrapf(err, "attribute %s", aname)
		}
		attrs = append(attrs, ` `+aname+`="`+escape(a.Value)+`"`)
	}
	if sorted {
		sort.Strings(attrs)
	}
	for _, a := range attrs {
		buf.WriteString(a)
	}

	if n.FirstChild == nil {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			if err := writeElement(buf, c, effective, sorted); err != nil {
				return err
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if err := checkChars(c.Data); err != nil {
				return errors.Wrapf(err, "text under <%s>", n.Data)
			}
			buf.WriteString(escape(c.Data))
		case xmlquery.CommentNode:
			return errors.New("comments are not allowed on a stream")
		}
	}
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteByte('>')
	return nil
}

func renderAttrName(a xmlquery.Attr, prefixes xmlutil.PrefixMap) (string, error) {
	switch {
	case a.NamespaceURI == "":
		return a.Name.Local, nil
	case a.NamespaceURI == NamespaceXML:
		return "xml:" + a.Name.Local, nil
	}
	pfx, ok := prefixes.PrefixOf(a.NamespaceURI)
	if !ok || pfx == "" {
		return "", errors.Errorf("no prefix binding for attribute namespace %q", a.NamespaceURI)
	}
	return pfx + ":" + a.Name.Local, nil
}
