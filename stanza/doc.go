/*
Package stanza assembles and routes stanza documents.

The Builder implements the stream.ElementConsumer interface, gathering
the element events for each direct child of the stream root into an
xmlquery document and handing the completed stanza to a Receiver. Errors
returned by the Receiver (or by the Builder itself, for content the
receiver cannot accept) surface through the stream Reader's per-stanza
fault isolation: a rejected stanza does not terminate the stream.

The Router is a Receiver dispatching stanzas to handlers registered by
root element name or by compiled XPath expression, in registration
order.
*/
package stanza
