package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/andaru/xmppstream/jid"
	"github.com/andaru/xmppstream/session"
	"github.com/andaru/xmppstream/stanza"
	"github.com/andaru/xmppstream/xmlutil"
)

// Config contains Server configuration
type Config struct {
	// Hostname is the local stream address, presented as the from
	// attribute of each stream header
	Hostname string
	// Addr is the TCP listen address, e.g. ":5222"
	Addr string
	// ContentNamespace is the default namespace bound on each stream
	// root, jabber:client or jabber:server
	ContentNamespace string
	// Handler handles session events for every connection and must be
	// safe for concurrent use. When nil, sessions use a LogHandler.
	Handler session.Handler
	// Router, when non-nil, receives each connection's stanzas instead
	// of the Handler's OnStanza method
	Router *stanza.Router
	// Logger receives server and session logs
	Logger zerolog.Logger
}

// Server accepts TCP connections and runs a stream Session on each
type Server struct {
	config Config
	local  jid.JID
	lis    net.Listener

	wg sync.WaitGroup
}

// New returns a Server listening on config.Addr
func New(config Config) (*Server, error) {
	local, err := jid.Parse(config.Hostname)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hostname")
	}
	if config.Handler == nil {
		config.Handler = LogHandler(config.Logger)
	}
	lis, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return nil, err
	}
	return &Server{config: config, local: local, lis: lis}, nil
}

// Addr returns the listener's address
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Serve accepts connections until ctx is cancelled, running a Session
// for each on its own goroutine. Serve returns once the listener is
// closed and all sessions have finished.
func (s *Server) Serve(ctx context.Context) error {
	s.config.Logger.Info().
		Stringer("addr", s.lis.Addr()).
		Str("namespace", s.config.ContentNamespace).
		Msg("listening")
	go func() {
		<-ctx.Done()
		s.lis.Close()
	}()
	var err error
	for {
		var conn net.Conn
		if conn, err = s.lis.Accept(); err != nil {
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
	s.wg.Wait()
	if ctx.Err() != nil {
		// listener teardown on cancellation is an orderly stop
		err = nil
	}
	s.config.Logger.Info().Msg("stopped")
	return err
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	id := newStreamID()
	logger := s.config.Logger.With().
		Str("stream", id).
		Stringer("remote", conn.RemoteAddr()).
		Logger()
	logger.Info().Msg("connection accepted")

	// closing the connection on cancellation unblocks the stream pump
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-cctx.Done()
		conn.Close()
	}()

	prefixes := xmlutil.PrefixMap{}
	if s.config.ContentNamespace != "" {
		prefixes[""] = s.config.ContentNamespace
	}
	sess := session.New(conn, conn, session.Config{
		ID:       id,
		Local:    s.local,
		Prefixes: prefixes,
		Router:   s.config.Router,
		Logger:   logger,
	})
	sess.Run(cctx, s.config.Handler)

	if errs := sess.Errors(); len(errs) > 0 {
		logger.Error().Errs("errors", errs).Msg("connection closed")
		return
	}
	logger.Info().
		Int("rx", sess.State.Counters.RxStanzas).
		Int("tx", sess.State.Counters.TxStanzas).
		Msg("connection closed")
}

// newStreamID returns a fresh unpredictable stream identifier
func newStreamID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// LogHandler returns a Handler logging session events to logger. Each
// received stanza is logged and every stanza fault is recovered, so a
// misbehaving stanza never tears down the stream.
func LogHandler(logger zerolog.Logger) session.Handler {
	return logHandler{logger: logger}
}

type logHandler struct {
	logger zerolog.Logger
}

func (h logHandler) OnEstablish(s *session.Session) {
	h.logger.Info().Stringer("to", s.State.Remote.To).Msg("stream established")
}

func (h logHandler) OnStanza(s *session.Session, n *xmlquery.Node) error {
	h.logger.Info().
		Str("name", n.Data).
		Str("namespace", n.NamespaceURI).
		Msg("stanza received")
	return nil
}

func (h logHandler) OnFault(s *session.Session, err error) error {
	h.logger.Warn().Err(err).Msg("stanza fault recovered")
	return nil
}

func (h logHandler) OnError(s *session.Session) {
	h.logger.Error().Errs("errors", s.Errors()).Msg("session error")
}

func (h logHandler) OnClose(s *session.Session) {}
