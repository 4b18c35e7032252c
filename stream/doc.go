/*
Package stream implements the two halves of the XMPP stream framing
contract.

The Reader is a state machine consuming low-level XML parse events
(document start and end, namespace qualified element start and end,
character data and processing instructions). It validates the stream
header, forwards every direct child of the stream root to a pluggable
ElementConsumer and reports the stream footer. An error raised by the
consumer is captured rather than propagated, and reported once parsing
has unwound back to directly beneath the stream root, so a single
malformed stanza can be rejected without dropping the stream.

The Writer serializes the stream header (with namespace prefix
declarations and a fixed attribute order), application stanzas and the
stream footer onto a byte sink. Close and Abort are idempotent: once
either has taken effect no further bytes are written.

The Tokenizer adapts an encoding/xml token source onto Reader events,
rejecting XML features the protocol forbids (processing instructions,
comments and DTDs).

The two components do not call each other; they are composed by the
session package.
*/
package stream
