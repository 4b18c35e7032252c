/*
Package session offers an XMPP stream session implementation.

Client and server applications implement the Handler (session event)
interface, most importantly its OnStanza method.

Session implementation and execution overview

Sessions are created using the New function, providing the input (src)
and output (dst) along with a session Config. The Config carries the
identity presented on the local stream header. Server sessions set a
unique Config.ID value, while client sessions leave it empty.

The Session binds the incoming direction (a stream Tokenizer, Reader
and stanza Builder) and the outgoing direction (a stream Writer) to
the transport pair. Each completed stanza from the peer is delivered
either to the configured stanza Router or to the Handler's OnStanza
method. Stanza processing errors are captured per stanza: the Handler's
OnFault method decides whether the stream recovers or terminates.

Session execution

The Run function takes a base Session (as created by New) and a custom
Handler implementation. Run writes the local stream header, then pumps
the peer's document through the framing layer until the peer closes its
stream, the context is cancelled, or a stream error occurs. Stream
errors are serialized to the peer before teardown. Handler methods are
called as described in the Handler documentation.
*/
package session
