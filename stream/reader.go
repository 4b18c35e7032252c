package stream

import (
	"encoding/xml"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"github.com/andaru/xmppstream/jid"
	"github.com/andaru/xmppstream/streamerr"
)

const (
	// NamespaceStreams is the XML namespace of the stream root element
	NamespaceStreams = "http://etherx.jabber.org/streams"
	// NamespaceXML is the namespace of the xml:lang attribute
	NamespaceXML = "http://www.w3.org/XML/1998/namespace"
)

// streamName is the reserved name of the stream root element
var streamName = xml.Name{Space: NamespaceStreams, Local: "stream"}

// ErrProtocolViolation indicates an operation was invoked in a state
// which forbids it. It reports a caller integration error, never a wire
// error, and is never recovered internally.
var ErrProtocolViolation = errors.New("protocol violation")

func violation(op string, s fmt.Stringer) error {
	return errors.Wrapf(ErrProtocolViolation, "%s: invalid state %s", op, s)
}

// ReaderState is a Reader's (present) state.
type ReaderState int

const (
	// StateIdle is the initial Reader state, before a document has started
	StateIdle ReaderState = iota
	// StateStarted is set after document start, before the stream header
	StateStarted
	// StateInStream is set once the stream header has been processed
	StateInStream
	// StateFinished is set once the stream footer has been processed
	StateFinished
	// StateFaulted indicates a consumer error has been captured and
	// parsing is unwinding to the faulted stanza's close
	StateFaulted
)

func (s ReaderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateInStream:
		return "in-stream"
	case StateFinished:
		return "finished"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("ReaderState(%d)", int(s))
	}
}

// Metadata is the stream header metadata presented by the remote peer.
type Metadata struct {
	// From is the optional originating address of the stream
	From *jid.JID
	// To is the required destination address of the stream
	To jid.JID
	// Version is the peer's protocol version, 0.9 when absent
	Version Version
	// Lang is the stream's declared language, language.Und when absent
	Lang language.Tag
}

// ElementConsumer consumes namespace qualified element events for the
// children of the stream root. The Reader never forwards the root
// element itself. Errors returned by BeginElement and EndElement are
// captured by the Reader for per-stanza fault isolation.
type ElementConsumer interface {
	BeginElement(name xml.Name, attrs []xml.Attr) error
	EndElement(name xml.Name) error
	Text(data string) error
	// SetLanguage pushes the stream's declared language to the consumer.
	// It is called whenever the language becomes known, and when the
	// consumer is bound to a Reader.
	SetLanguage(lang language.Tag)
}

// Events receives framing notifications from a Reader.
type Events interface {
	// StreamHeader is called once the stream header has been validated
	StreamHeader(md Metadata)
	// StreamFooter is called once the stream root has closed
	StreamFooter()
	// Fault is called once per captured stanza fault, with the consumer's
	// error. Returning nil recovers the stream: the Reader accepts the
	// next sibling stanza normally. Returning an error terminates
	// processing of the document; return err to re-raise the fault.
	Fault(err error) error
}


// Reader is the incoming direction stream framing state machine.
//
// A single long-lived Reader consumes a strictly ordered event sequence
// for one logical connection and rejects malformed sequences eagerly.
// Reader is not safe for concurrent use; it is driven synchronously by
// its caller, typically a Tokenizer.
type Reader struct {
	state    ReaderState
	depth    int
	consumer ElementConsumer
	events   Events
	md       Metadata
	fault    error
}

// NewReader returns a new Reader delivering element events to consumer
// and framing notifications to events.
func NewReader(consumer ElementConsumer, events Events) *Reader {
	if consumer == nil || events == nil {
		panic("NewReader: both consumer and events must be non-nil")
	}
	return &Reader{consumer: consumer, events: events}
}

// State returns the present Reader state
func (r *Reader) State() ReaderState { return r.state }

// Depth returns the count of presently open elements
func (r *Reader) Depth() int { return r.depth }

// Metadata returns the stream header metadata. Its value is meaningful
// only once the stream header has been processed; see the StreamHeader
// event.
func (r *Reader) Metadata() Metadata { return r.md }

// SetConsumer replaces the element consumer. The consumer is fixed for
// the duration of one document: replacement is permitted only before a
// document starts or after the stream footer has been processed.
// Any already known stream language is pushed to the new consumer.
func (r *Reader) SetConsumer(consumer ElementConsumer) error {
	if consumer == nil {
		panic("SetConsumer: consumer must be non-nil")
	}
	if r.state != StateIdle && r.state != StateFinished {
		return violation("SetConsumer", r.state)
	}
	r.consumer = consumer
	consumer.SetLanguage(r.md.Lang)
	return nil
}

// BeginDocument starts a new document, binding the configured element
// consumer and resetting the depth counter.
func (r *Reader) BeginDocument() error {
	if r.state != StateIdle {
		return violation("BeginDocument", r.state)
	}
	r.state = StateStarted
	r.depth = 0
	r.fault = nil
	return nil
}

// EndDocument ends the document. It is valid only after the stream
// footer has been processed.
func (r *Reader) EndDocument() error {
	if r.state != StateFinished {
		return violation("EndDocument", r.state)
	}
	r.state = StateIdle
	return nil
}

// ProcessingInstruction rejects the processing instruction: PIs are
// forbidden on a stream at any depth.
func (r *Reader) ProcessingInstruction(target, data string) error {
	return streamerr.RestrictedXML(
		streamerr.WithText("processing instructions are not allowed on a stream"))
}

// BeginPrefixMapping is called when a namespace prefix scope opens.
// Prefix scopes carry no framing information and are ignored.
func (r *Reader) BeginPrefixMapping(prefix, uri string) {}

// EndPrefixMapping is called when a namespace prefix scope closes.
func (r *Reader) EndPrefixMapping(prefix string) {}

// Text forwards character data to the element consumer. While a fault is
// pending the data is discarded.
func (r *Reader) Text(data string) error {
	switch r.state {
	case StateFaulted:
		return nil
	case StateInStream:
		return r.consumer.Text(data)
	default:
		return violation("Text", r.state)
	}
}

// BeginElement processes an element open event.
//
// The first element of a document must be the stream root; its
// attributes populate the stream Metadata and fire the StreamHeader
// event. Subsequent opens are forwarded to the element consumer; a
// consumer error is captured, not propagated, and all further opens are
// swallowed until the fault has been reported.
func (r *Reader) BeginElement(name xml.Name, attrs []xml.Attr) error {
	switch r.state {
	case StateInStream:
		if err := r.consumer.BeginElement(name, attrs); err != nil {
			r.fault = err
			r.state = StateFaulted
		}
		r.depth++
		return nil
	case StateFaulted:
		r.depth++
		return nil
	case StateStarted:
		return r.processHeader(name, attrs)
	default:
		return violation("BeginElement", r.state)
	}
}

// EndElement processes an element close event.
//
// Closing the stream root fires the StreamFooter event. A fault captured
// at depth d is reported precisely when the matching close brings the
// depth back to 1, so the reported error corresponds to exactly the
// stanza that produced it.
func (r *Reader) EndElement(name xml.Name) error {
	switch r.state {
	case StateInStream:
		r.depth--
		if r.depth > 0 {
			if err := r.consumer.EndElement(name); err != nil {
				r.fault = err
				r.state = StateFaulted
				if r.depth == 1 {
					return r.reportFault()
				}
			}
			return nil
		}
		r.events.StreamFooter()
		r.state = StateFinished
		return nil
	case StateFaulted:
		r.depth--
		if r.depth == 1 {
			return r.reportFault()
		}
		return nil
	default:
		return violation("EndElement", r.state)
	}
}

// reportFault consumes the pending fault, returning the stream to the
// in-stream state. The Events.Fault result decides whether processing
// continues (nil) or the fault is fatal to the document (non-nil).
func (r *Reader) reportFault() error {
	r.state = StateInStream
	err := r.fault
	r.fault = nil
	return r.events.Fault(err)
}

func (r *Reader) processHeader(name xml.Name, attrs []xml.Attr) error {
	if r.depth != 0 {
		return violation("BeginElement", r.state)
	}
	if name != streamName {
		return streamerr.InvalidNamespace(streamerr.WithText(
			fmt.Sprintf("stream root has invalid namespace or local name {%s}%s",
				name.Space, name.Local)))
	}

	var md Metadata
	var lang language.Tag
	var haveTo, haveVersion bool
	for _, attr := range attrs {
		switch attr.Name {
		case xml.Name{Local: "to"}:
			to, err := jid.Parse(attr.Value)
			if err != nil {
				return streamerr.UndefinedCondition(streamerr.WithText(
					"invalid to attribute in stream header: " + err.Error()))
			}
			md.To, haveTo = to, true
		case xml.Name{Local: "from"}:
			from, err := jid.Parse(attr.Value)
			if err != nil {
				return errors.Wrap(err, "invalid from attribute in stream header")
			}
			md.From = &from
		case xml.Name{Local: "version"}:
			v, err := ParseVersion(attr.Value)
			if err != nil {
				return streamerr.UnsupportedVersion(streamerr.WithText(err.Error()))
			}
			md.Version, haveVersion = v, true
		case xml.Name{Space: NamespaceXML, Local: "lang"}:
			l, err := language.Parse(attr.Value)
			if err != nil {
				return errors.Wrap(err, "invalid xml:lang attribute in stream header")
			}
			lang = l
		}
	}
	if !haveTo {
		return streamerr.UndefinedCondition(
			streamerr.WithText("required to attribute missing in stream header"))
	}
	if !haveVersion {
		md.Version = DefaultVersion
	}
	md.Lang = lang

	r.md = md
	r.consumer.SetLanguage(md.Lang)
	r.events.StreamHeader(md)
	r.state = StateInStream
	r.depth = 1
	return nil
}
