/*
Package xmppstream is a set of XMPP (RFC6120) stream framing support libraries.

Doing the heavy lifting of stream framing (an incoming-direction state
machine decoding the stream header, stanzas and the stream footer, and
an outgoing-direction stream writer), stanza document assembly and
session initialization, these libraries allow easy XMPP client and
server application development.

The stream package contains the two halves of the framing contract: the
Reader state machine consumes low-level XML parse events and isolates
errors to a single stanza without losing synchronization with the
enclosing document, while the Writer serializes the stream header,
application stanzas and the stream footer onto a byte sink with
idempotent teardown semantics.

The stanza package assembles complete stanza documents from element
events and routes them to application handlers, the session package
binds one Reader and one Writer to a connection, and the server package
accepts connections and runs one session per connection.

See the stream and session sub-directories for more information about
Reader, Writer and Session objects and Handler implementations.
*/
package xmppstream
