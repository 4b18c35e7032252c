/*
Package server offers a TCP listener running one stream Session per
connection.

A Server is created with New, which opens its listener, and driven by
Serve, which accepts connections until the context is cancelled. Each
accepted connection is assigned a fresh stream identifier and handled
by a session configured from the Server's Config. XMPP deployments run
two Servers, one per content namespace: jabber:client for client to
server streams and jabber:server for server to server streams.
*/
package server
