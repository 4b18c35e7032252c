package session

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/antchfx/xmlquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/andaru/xmppstream/jid"
	"github.com/andaru/xmppstream/stanza"
	"github.com/andaru/xmppstream/stream"
	"github.com/andaru/xmppstream/streamerr"
	"github.com/andaru/xmppstream/xmlutil"
)

// New returns a new XMPP stream Session
func New(src io.Reader, dst io.WriteCloser, config Config) *Session {
	s := &Session{
		Config: &config,
		State:  &State{},
		src:    src,
		dst:    dst,
	}
	ev := &events{s: s}
	s.builder = stanza.NewBuilder(ev)
	s.reader = stream.NewReader(s.builder, ev)
	s.tok = stream.NewTokenizer(src, s.reader)
	s.writer = stream.NewWriter(dst, stream.Identity{
		ID:               config.ID,
		From:             config.Local,
		To:               config.Peer,
		Version:          config.Version,
		Prefixes:         config.Prefixes,
		SortedAttributes: config.SortedAttributes,
	})
	return s
}

// Run executes the Session s, using Handler h
func Run(ctx context.Context, s *Session, h Handler) {
	s.handler = h
	// open the outgoing direction by sending our stream header
	if s.Start() {
		// pump the peer's document until it ends or fails
		if err := s.tok.Run(ctx); err != nil {
			s.AddError(err)
			s.State.Status = StatusError
			s.sendStreamError(err)
		}
	}
	if s.State.Status == StatusError {
		// the session failed, run the error callback
		h.OnError(s)
	}
	// close the session
	s.Close()
	// finally, run the close callback
	h.OnClose(s)
}

// Session represents an XMPP stream session
type Session struct {
	Config *Config
	State  *State

	src     io.Reader
	dst     io.WriteCloser
	handler Handler
	reader  *stream.Reader
	writer  *stream.Writer
	tok     *stream.Tokenizer
	builder *stanza.Builder
}

// Handler is the Session handler interface.
// Client and/or server applications implement this interface.
//
// See Run() for usage.
type Handler interface {
	// OnEstablish is called when the session is established.
	// When called, the peer's stream header has been validated and is
	// available in State.Remote.
	OnEstablish(*Session)
	// OnStanza is called with each completed stanza from the peer,
	// unless a Router is configured. A non-nil error faults the stanza
	// and is reported to OnFault.
	OnStanza(*Session, *xmlquery.Node) error
	// OnFault is called once per faulted stanza with the causing
	// error. Returning nil recovers the stream; returning an error
	// (typically err itself) terminates the session.
	OnFault(s *Session, err error) error
	// OnError is called once if the session transitions to the
	// StatusError state, before the transport is closed.
	OnError(*Session)
	// OnClose is called immediately after the session's transport is
	// closed.
	OnClose(*Session)
}

// Config contains Session configuration
type Config struct {
	// ID is the stream identifier presented on the local stream
	// header. Must be non-empty for server sessions and empty for
	// client sessions.
	ID string
	// Local is the local stream address, sent as the header's from
	Local jid.JID
	// Peer is the optional remote stream address, sent as the header's to
	Peer *jid.JID
	// Version is the local protocol version; 1.0 when zero
	Version stream.Version
	// Prefixes maps namespace prefixes declared on the local stream root
	Prefixes xmlutil.PrefixMap
	// SortedAttributes selects deterministic attribute ordering for
	// outgoing stanzas
	SortedAttributes bool
	// Router, when non-nil, receives the peer's stanzas instead of the
	// Handler's OnStanza method
	Router *stanza.Router
	// Logger receives session lifecycle and fault logs. The zero value
	// disables logging.
	Logger zerolog.Logger
}

// State contains runtime Session state
type State struct {
	// Remote holds the peer's stream header metadata. It is populated
	// when the session reaches StatusEstablished.
	Remote stream.Metadata
	// Status is the session status
	Status Status
	// Counters contains session counters
	Counters struct {
		// RxStanzas is the number of stanzas received on the session
		RxStanzas int
		// TxStanzas is the number of stanzas sent on the session
		TxStanzas int
		// Faults is the number of stanza faults captured on the session
		Faults int
	}

	// Opaque is user private data and is not used by the session libraries.
	Opaque interface{}

	errs []error
}

// Status is a Session's (present) state.
type Status int

const (
	// StatusInactive is the initial session state, indicating that
	// I/O has not yet been started.
	StatusInactive Status = iota
	// StatusHeaderExchange is set after the local stream header has
	// been sent, before the peer's header arrives.
	StatusHeaderExchange
	// StatusEstablished is set once the peer's stream header has been
	// validated.
	StatusEstablished

	// StatusError indicates the session has encountered an error.
	StatusError
	// StatusClosed indicates the session closed normally.
	StatusClosed
)

// Start writes the local stream header, opening the outgoing direction.
//
// Returns true if the header was written, in which case the session
// status will be StatusHeaderExchange; otherwise returns false, in
// which case Session.Errors will return non-nil and the session status
// will be StatusError.
func (s *Session) Start() (ok bool) {
	if s.State.Status == StatusInactive {
		s.State.Status = StatusHeaderExchange
		s.AddError(s.writer.Start())
		ok = len(s.State.errs) == 0
	}
	if !ok {
		s.State.Status = StatusError
	}
	return ok
}

// Send serializes the stanza n to the peer
func (s *Session) Send(n *xmlquery.Node) error {
	if err := s.writer.Send(n); err != nil {
		return err
	}
	s.State.Counters.TxStanzas++
	return nil
}

// Close closes the Session
func (s *Session) Close() error {
	s.State.Status = StatusClosed
	if err := s.writer.Close(); err != nil {
		s.AddError(errors.Wrap(err, "close stream"))
	}
	err := s.dst.Close()
	if err == io.ErrClosedPipe {
		err = nil
	}
	return err
}

// AddError adds an error to the session state
func (s *Session) AddError(errs ...error) (added int) {
	for _, err := range errs {
		if err != nil {
			s.State.errs = append(s.State.errs, err)
			added++
		}
	}
	return added
}

// Errors returns all session errors
func (s *Session) Errors() []error { return s.State.errs }

// Run executes the session using Handler h
func (s *Session) Run(ctx context.Context, handler Handler) { Run(ctx, s, handler) }

// sendStreamError serializes a <stream:error> element for err to the
// peer when the outgoing direction is still open and err carries a
// defined stream error condition.
func (s *Session) sendStreamError(err error) {
	if s.writer.State() != stream.WriterOpen {
		return
	}
	var se *streamerr.Error
	if !errors.As(err, &se) {
		return
	}
	if werr := s.writer.Send(errorElement(se)); werr != nil {
		s.AddError(errors.Wrap(werr, "send stream error"))
	}
}

func errorElement(e *streamerr.Error) *xmlquery.Node {
	root := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         "error",
		NamespaceURI: streamerr.NamespaceStreams,
	}
	cond := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         e.Condition.String(),
		NamespaceURI: streamerr.NamespaceStreamErrors,
	}
	xmlquery.AddChild(root, cond)
	if e.Text != "" {
		text := &xmlquery.Node{
			Type:         xmlquery.ElementNode,
			Data:         "text",
			NamespaceURI: streamerr.NamespaceStreamErrors,
		}
		xmlquery.AddChild(text, &xmlquery.Node{Type: xmlquery.TextNode, Data: e.Text})
		xmlquery.AddChild(root, text)
	}
	return root
}

// events adapts framing notifications and completed stanzas onto the
// session's Handler and Router.
type events struct {
	s *Session
}

var _ stream.Events = (*events)(nil)
var _ stanza.Receiver = (*events)(nil)
var _ stanza.NameChecker = (*events)(nil)

func (e *events) StreamHeader(md stream.Metadata) {
	s := e.s
	s.State.Remote = md
	s.State.Status = StatusEstablished
	s.Config.Logger.Debug().
		Stringer("to", md.To).
		Stringer("version", md.Version).
		Msg("stream established")
	if s.handler != nil {
		s.handler.OnEstablish(s)
	}
}

func (e *events) StreamFooter() {
	s := e.s
	s.Config.Logger.Debug().Msg("stream closed by peer")
	s.State.Status = StatusClosed
	if err := s.writer.Close(); err != nil {
		s.AddError(errors.Wrap(err, "close stream"))
	}
}

func (e *events) Fault(err error) error {
	s := e.s
	s.State.Counters.Faults++
	s.Config.Logger.Warn().Err(err).Msg("stanza fault")
	if s.handler != nil {
		return s.handler.OnFault(s, err)
	}
	return err
}

func (e *events) CheckName(name xml.Name) error {
	if r := e.s.Config.Router; r != nil {
		return r.CheckName(name)
	}
	return nil
}

func (e *events) Receive(n *xmlquery.Node) error {
	s := e.s
	s.State.Counters.RxStanzas++
	if r := s.Config.Router; r != nil {
		return r.Receive(n)
	}
	if s.handler != nil {
		return s.handler.OnStanza(s, n)
	}
	return nil
}
