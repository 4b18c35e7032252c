package stream

import (
	"bytes"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andaru/xmppstream/jid"
	"github.com/andaru/xmppstream/xmlutil"
)

func element(space, local string, children ...*xmlquery.Node) *xmlquery.Node {
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: local, NamespaceURI: space}
	for _, c := range children {
		xmlquery.AddChild(n, c)
	}
	return n
}

func text(data string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: data}
}

func attr(n *xmlquery.Node, local, value string) *xmlquery.Node {
	n.Attr = append(n.Attr, xmlquery.Attr{Name: xmlutil.XMLName(local), Value: value})
	return n
}

func TestWriterStartAndClose(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test")})
	ck := assert.New(t)

	// no bytes before Start
	ck.Equal("", b.String())
	ck.Equal(WriterNotStarted, w.State())

	require.NoError(t, w.Start())
	wantHeader := `<?xml version="1.0"?>` +
		`<stream:stream xmlns:stream="http://etherx.jabber.org/streams"` +
		` id="abc" from="example.test" version="1.0">`
	ck.Equal(wantHeader, b.String())
	ck.Equal(WriterOpen, w.State())

	require.NoError(t, w.Close())
	ck.Equal(wantHeader+`</stream:stream>`, b.String())
	ck.Equal(WriterClosed, w.State())

	// idempotent teardown: nothing more on subsequent Close or Abort
	require.NoError(t, w.Close())
	w.Abort()
	require.NoError(t, w.Close())
	ck.Equal(wantHeader+`</stream:stream>`, b.String())
	ck.Equal(WriterClosed, w.State())
}

func TestWriterStartAttributeOrder(t *testing.T) {
	b := &bytes.Buffer{}
	to := jid.MustParse("peer.test")
	w := NewWriter(b, Identity{
		ID:      "xyz",
		From:    jid.MustParse("example.test"),
		To:      &to,
		Version: Version{1, 0},
		Prefixes: xmlutil.PrefixMap{
			"":       "jabber:client",
			"stream": NamespaceStreams,
		},
	})
	require.NoError(t, w.Start())
	// prefix declarations precede the root's own attributes; the default
	// binding sorts first; id, from, version, to in fixed order
	assert.Equal(t, `<?xml version="1.0"?>`+
		`<stream:stream xmlns="jabber:client"`+
		` xmlns:stream="http://etherx.jabber.org/streams"`+
		` id="xyz" from="example.test" version="1.0" to="peer.test">`,
		b.String())
}

func TestWriterStreamPrefixCollision(t *testing.T) {
	// a caller binding of the conventional prefix to another namespace
	// is preserved; the streams namespace binds to the next free prefix
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{
		ID:   "abc",
		From: jid.MustParse("example.test"),
		Prefixes: xmlutil.PrefixMap{
			"stream": "urn:example:other",
		},
	})
	require.NoError(t, w.Start())
	require.NoError(t, w.Close())
	assert.Equal(t, `<?xml version="1.0"?>`+
		`<stream0:stream xmlns:stream="urn:example:other"`+
		` xmlns:stream0="http://etherx.jabber.org/streams"`+
		` id="abc" from="example.test" version="1.0">`+
		`</stream0:stream>`,
		b.String())
}

func TestWriterStartTwice(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Identity{ID: "abc", From: jid.MustParse("example.test")})
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrProtocolViolation)
}

func TestWriterAbort(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test")})
	require.NoError(t, w.Start())
	n := b.Len()

	w.Abort()
	assert.Equal(t, WriterAborted, w.State())

	// no footer is ever written once aborted
	w.Abort()
	require.NoError(t, w.Close())
	assert.Equal(t, n, b.Len())
	assert.Equal(t, WriterAborted, w.State())
}

func TestWriterCloseBeforeStart(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test")})
	require.NoError(t, w.Close())
	assert.Equal(t, "", b.String())
	assert.Equal(t, WriterClosed, w.State())
	assert.ErrorIs(t, w.Start(), ErrProtocolViolation)
}

func TestWriterSend(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{
		ID:   "abc",
		From: jid.MustParse("example.test"),
		Prefixes: xmlutil.PrefixMap{
			"": "jabber:client",
		},
	})
	require.NoError(t, w.Start())
	header := b.String()

	// elements in the default binding render unprefixed without
	// re-declaring the namespace
	msg := attr(element("jabber:client", "message",
		element("jabber:client", "body", text("hi & <bye>"))),
		"to", "foo@example.test")
	require.NoError(t, w.Send(msg))
	assert.Equal(t, header+
		`<message to="foo@example.test"><body>hi &amp; &lt;bye&gt;</body></message>`,
		b.String())
}

func TestWriterSendPrefixed(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test")})
	require.NoError(t, w.Start())
	header := b.String()

	// the auto-bound stream prefix covers the streams namespace
	require.NoError(t, w.Send(element(NamespaceStreams, "features")))
	assert.Equal(t, header+`<stream:features/>`, b.String())
}

func TestWriterSendUnboundNamespace(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test")})
	require.NoError(t, w.Start())
	header := b.String()

	// an unbound namespace is declared on the element itself
	require.NoError(t, w.Send(element("uri:foo", "bar", element("uri:foo", "baz"))))
	assert.Equal(t, header+`<bar xmlns="uri:foo"><baz/></bar>`, b.String())
}

func TestWriterSendSerializationError(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test"),
		Prefixes: xmlutil.PrefixMap{"": "jabber:client"}})
	require.NoError(t, w.Start())
	header := b.String()
	ck := assert.New(t)

	// a NUL byte is illegal in XML: the send fails and writes nothing
	bad := element("jabber:client", "message", text("a\x00b"))
	err := w.Send(bad)
	var serr *SerializationError
	ck.ErrorAs(err, &serr)
	ck.Equal(header, b.String(), "no partial bytes for the failed stanza")
	ck.Equal(WriterOpen, w.State())

	// prior and subsequent sends are unaffected
	require.NoError(t, w.Send(element("jabber:client", "message", text("ok"))))
	ck.Equal(header+`<message>ok</message>`, b.String())
}

func TestWriterSendStateGuards(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Identity{ID: "abc", From: jid.MustParse("example.test")})
	ck := assert.New(t)
	ck.ErrorIs(w.Send(element("uri:foo", "bar")), ErrProtocolViolation)
	require.NoError(t, w.Start())
	require.NoError(t, w.Close())
	ck.ErrorIs(w.Send(element("uri:foo", "bar")), ErrProtocolViolation)
}

func TestWriterSortedAttributes(t *testing.T) {
	b := &bytes.Buffer{}
	w := NewWriter(b, Identity{ID: "abc", From: jid.MustParse("example.test"),
		Prefixes:         xmlutil.PrefixMap{"": "jabber:client"},
		SortedAttributes: true})
	require.NoError(t, w.Start())
	header := b.String()

	msg := element("jabber:client", "message")
	attr(msg, "type", "chat")
	attr(msg, "id", "1")
	require.NoError(t, w.Send(msg))
	assert.Equal(t, header+`<message id="1" type="chat"/>`, b.String())
}
