// Command xmppstreamd runs XMPP stream listeners for the client and
// server content namespaces, logging the stanzas each stream carries.
package main

import (
	"context"
	"encoding/xml"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog"

	"github.com/andaru/xmppstream/server"
	"github.com/andaru/xmppstream/stanza"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	fallback := zerolog.New(os.Stderr)
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fallback.Fatal().Err(err).Msg("failed to open log sink")
	}
	logger.Info().Str("hostname", cfg.Host.Hostname).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)
	listeners := []struct {
		namespace string
		port      int
	}{
		{"jabber:client", cfg.Host.Ports.Client},
		{"jabber:server", cfg.Host.Ports.Server},
	}
	for _, l := range listeners {
		srvLogger := logger.With().Str("namespace", l.namespace).Logger()
		srv, err := server.New(server.Config{
			Hostname:         cfg.Host.Hostname,
			Addr:             net.JoinHostPort(cfg.Host.Hostname, strconv.Itoa(l.port)),
			ContentNamespace: l.namespace,
			Router:           stanzaRouter(l.namespace, srvLogger),
			Logger:           srvLogger,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("namespace", l.namespace).Msg("listen failed")
		}
		go func() { errc <- srv.Serve(ctx) }()
	}

	exit := 0
	for range listeners {
		if err := <-errc; err != nil {
			logger.Error().Err(err).Msg("listener failed")
			exit = 1
		}
	}
	logger.Info().Msg("stopped")
	os.Exit(exit)
}

// stanzaRouter routes the stanza kinds defined for ns, logging each.
// Any other stanza faults and is recovered by the session handler.
func stanzaRouter(ns string, logger zerolog.Logger) *stanza.Router {
	logStanza := func(kind string) stanza.HandlerFunc {
		return func(n *xmlquery.Node) error {
			logger.Info().Str("kind", kind).Str("xml", n.OutputXML(true)).
				Msg("stanza")
			return nil
		}
	}
	return stanza.NewRouter().
		Handle(xml.Name{Space: ns, Local: "message"}, logStanza("message")).
		Handle(xml.Name{Space: ns, Local: "presence"}, logStanza("presence")).
		Handle(xml.Name{Space: ns, Local: "iq"}, logStanza("iq"))
}

// newLogger builds the process logger from the Logger config section
func newLogger(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	var sink *os.File
	if cfg.Logger.Filename != "" {
		sink, err = os.OpenFile(cfg.Logger.Filename,
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
	} else {
		sink = os.Stderr
	}
	return zerolog.New(sink).Level(level).With().Timestamp().Logger(), nil
}
