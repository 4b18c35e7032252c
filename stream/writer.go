package stream

import (
	"bufio"
	"fmt"
	"io"

	"github.com/antchfx/xmlquery"

	"github.com/andaru/xmppstream/jid"
	"github.com/andaru/xmppstream/xmlutil"
)

// xmlDeclaration is the document preamble written by Start
const xmlDeclaration = `<?xml version="1.0"?>`

// WriterState is a Writer's (present) state.
type WriterState int

const (
	// WriterNotStarted is the initial Writer state; no bytes have been written
	WriterNotStarted WriterState = iota
	// WriterOpen is set once the stream header has been written
	WriterOpen
	// WriterClosed is a terminal state: the stream footer has been written
	WriterClosed
	// WriterAborted is a terminal state: the stream was truncated without
	// a footer
	WriterAborted
)

func (s WriterState) String() string {
	switch s {
	case WriterNotStarted:
		return "not-started"
	case WriterOpen:
		return "open"
	case WriterClosed:
		return "closed"
	case WriterAborted:
		return "aborted"
	default:
		return fmt.Sprintf("WriterState(%d)", int(s))
	}
}

// Identity is the immutable identity a Writer presents on its stream
// header.
type Identity struct {
	// ID is the unique identifier of the stream connection
	ID string
	// From is the local address of the stream (mandatory)
	From jid.JID
	// To is the optional peer address
	To *jid.JID
	// Version is the protocol version pair; 1.0 when zero
	Version Version
	// Prefixes maps namespace prefixes to URIs declared on the stream
	// root. Stanzas sent afterwards inherit these bindings. A binding
	// for the streams namespace is added when none is configured.
	Prefixes xmlutil.PrefixMap
	// SortedAttributes selects deterministic (lexical) attribute
	// ordering when serializing stanzas
	SortedAttributes bool
}

// Writer is the outgoing direction of the stream framing contract.
//
// A Writer serializes the stream header, zero or more independently
// serialized stanzas and the stream footer onto its sink. Teardown is
// strictly idempotent: once Close or Abort has taken effect, further
// Close and Abort calls write nothing.
type Writer struct {
	identity Identity
	sink     *bufio.Writer
	state    WriterState

	// effective prefix bindings, including any auto-bound stream prefix
	prefixes xmlutil.PrefixMap
	// rendered name of the stream root, e.g. "stream:stream"
	rootTag string
}

// NewWriter returns a new Writer serializing a stream with the given
// identity onto sink.
func NewWriter(sink io.Writer, identity Identity) *Writer {
	if sink == nil {
		panic("NewWriter: sink must be non-nil")
	}
	if identity.Version.IsZero() {
		identity.Version = Version{1, 0}
	}
	prefixes := identity.Prefixes.Clone()
	if _, ok := prefixes.PrefixOf(NamespaceStreams); !ok {
		// never displace a caller binding of the conventional prefix
		pfx := "stream"
		for i := 0; ; i++ {
			if _, taken := prefixes[pfx]; !taken {
				break
			}
			pfx = fmt.Sprintf("stream%d", i)
		}
		prefixes[pfx] = NamespaceStreams
	}
	w := &Writer{
		identity: identity,
		sink:     bufio.NewWriter(sink),
		prefixes: prefixes,
	}
	w.rootTag = renderName(streamName, prefixes)
	return w
}

// State returns the present Writer state
func (w *Writer) State() WriterState { return w.state }

// Start writes the document preamble and the stream root open tag, with
// the configured namespace prefix declarations followed by the id, from,
// version and optional to attributes, then flushes the sink so the
// header is observable immediately. Start must be called exactly once.
func (w *Writer) Start() error {
	if w.state != WriterNotStarted {
		return violation("Start", w.state)
	}
	w.sink.WriteString(xmlDeclaration)
	w.sink.WriteByte('<')
	w.sink.WriteString(w.rootTag)
	for _, attr := range w.prefixes.Attr() {
		writeAttr(w.sink, attrTag(attr.Name), attr.Value)
	}
	writeAttr(w.sink, "id", w.identity.ID)
	writeAttr(w.sink, "from", w.identity.From.String())
	writeAttr(w.sink, "version", w.identity.Version.String())
	if w.identity.To != nil {
		writeAttr(w.sink, "to", w.identity.To.String())
	}
	w.sink.WriteByte('>')
	if err := w.sink.Flush(); err != nil {
		return err
	}
	w.state = WriterOpen
	return nil
}

// Send serializes one stanza as a child of the stream root, rendering
// namespace qualified names against the bindings established at Start.
// On serialization failure a *SerializationError is returned and no
// bytes are written for the stanza; prior and subsequent sends are
// unaffected.
func (w *Writer) Send(n *xmlquery.Node) error {
	if w.state != WriterOpen {
		return violation("Send", w.state)
	}
	buf, err := serializeStanza(n, w.prefixes, w.identity.SortedAttributes)
	if err != nil {
		return &SerializationError{Err: err}
	}
	if _, err := w.sink.Write(buf); err != nil {
		return err
	}
	return w.sink.Flush()
}

// Close writes the stream root closing tag if the stream is open.
// Close is idempotent, and a no-op after Abort.
func (w *Writer) Close() error {
	switch w.state {
	case WriterOpen:
		w.sink.WriteString("</")
		w.sink.WriteString(w.rootTag)
		w.sink.WriteByte('>')
		w.state = WriterClosed
		return w.sink.Flush()
	case WriterNotStarted:
		w.state = WriterClosed
		return nil
	default:
		// already closed or aborted
		return nil
	}
}

// Abort truncates the stream without writing the closing tag. Abort is
// idempotent, and a no-op after Close: a finalized stream cannot be
// retroactively un-finalized.
func (w *Writer) Abort() {
	switch w.state {
	case WriterOpen, WriterNotStarted:
		w.state = WriterAborted
	}
}
