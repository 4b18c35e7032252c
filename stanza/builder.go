package stanza

import (
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

// Receiver accepts completed stanza documents from a Builder.
type Receiver interface {
	// Receive is called with the root element of each completed stanza.
	// The element's parent is its enclosing document node, so absolute
	// XPath queries work against the stanza. A non-nil error rejects
	// the stanza and is reported through the stream's fault isolation.
	Receive(stanza *xmlquery.Node) error
}

// NameChecker is implemented by Receivers able to reject a stanza from
// its root element name alone, before any of its content is assembled.
type NameChecker interface {
	CheckName(name xml.Name) error
}

// Builder assembles stanza documents from element events.
//
// Builder implements stream.ElementConsumer. Each direct child of the
// stream root becomes the root element of a fresh xmlquery document,
// populated from the nested element and character data events, and is
// passed to the Receiver when its close event arrives.
type Builder struct {
	recv Receiver
	doc  *xmlquery.Node
	cur  *xmlquery.Node
	lang language.Tag
}

// NewBuilder returns a Builder delivering completed stanzas to recv
func NewBuilder(recv Receiver) *Builder {
	if recv == nil {
		panic("NewBuilder: recv must be non-nil")
	}
	return &Builder{recv: recv}
}

// Language returns the stream language most recently pushed by the Reader
func (b *Builder) Language() language.Tag { return b.lang }

// SetLanguage records the stream's declared language
func (b *Builder) SetLanguage(lang language.Tag) { b.lang = lang }

// BeginElement opens an element. The first open of a stanza consults
// the Receiver's NameChecker, when implemented, so unacceptable stanzas
// fail before their content is assembled.
func (b *Builder) BeginElement(name xml.Name, attrs []xml.Attr) error {
	if b.cur == nil {
		if nc, ok := b.recv.(NameChecker); ok {
			if err := nc.CheckName(name); err != nil {
				return err
			}
		}
		doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
		el := newElement(name, attrs)
		xmlquery.AddChild(doc, el)
		b.doc, b.cur = doc, el
		return nil
	}
	el := newElement(name, attrs)
	xmlquery.AddChild(b.cur, el)
	b.cur = el
	return nil
}

// EndElement closes the current element. Closing the stanza root hands
// the completed document to the Receiver.
func (b *Builder) EndElement(name xml.Name) error {
	if b.cur == nil {
		return errors.Errorf("unbalanced end of element {%s}%s", name.Space, name.Local)
	}
	parent := b.cur.Parent
	if parent.Type != xmlquery.DocumentNode {
		b.cur = parent
		return nil
	}
	stanza := b.cur
	b.doc, b.cur = nil, nil
	return b.recv.Receive(stanza)
}

// Text appends character data to the current element. Between stanzas
// only whitespace is accepted; XMPP peers send it as keepalive.
func (b *Builder) Text(data string) error {
	if b.cur == nil {
		if strings.TrimSpace(data) != "" {
			return errors.New("text is not allowed between stanzas")
		}
		return nil
	}
	if last := b.cur.LastChild; last != nil && last.Type == xmlquery.TextNode {
		last.Data += data
		return nil
	}
	xmlquery.AddChild(b.cur, &xmlquery.Node{Type: xmlquery.TextNode, Data: data})
	return nil
}

func newElement(name xml.Name, attrs []xml.Attr) *xmlquery.Node {
	n := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         name.Local,
		NamespaceURI: name.Space,
	}
	for _, a := range attrs {
		attr := xmlquery.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value}
		if a.Name.Space != "" {
			attr.NamespaceURI = a.Name.Space
		}
		n.Attr = append(n.Attr, attr)
	}
	return n
}
