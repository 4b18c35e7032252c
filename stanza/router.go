package stanza

import (
	"encoding/xml"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/pkg/errors"
)

// HandlerFunc handles one completed stanza. The node passed is the
// stanza's root element; its parent is the enclosing document node.
type HandlerFunc func(stanza *xmlquery.Node) error

// Router dispatches completed stanzas to registered handlers.
//
// Handlers register either for a namespace qualified root element name
// or for an XPath expression evaluated against the stanza document.
// Routes are tried in registration order; the first match wins. A
// stanza matching no route is rejected, surfacing through the stream's
// per-stanza fault isolation.
type Router struct {
	routes []route
}

type route struct {
	name xml.Name
	expr *xpath.Expr
	fn   HandlerFunc
}

// NewRouter returns an empty Router
func NewRouter() *Router { return &Router{} }

// Handle registers fn for stanzas whose root element is name
func (r *Router) Handle(name xml.Name, fn HandlerFunc) *Router {
	if fn == nil {
		panic("Handle: fn must be non-nil")
	}
	r.routes = append(r.routes, route{name: name, fn: fn})
	return r
}

// HandleMatch registers fn for stanzas whose document matches the XPath
// pattern. The pattern must compile; like xpath.MustCompile, HandleMatch
// panics when it does not.
func (r *Router) HandleMatch(pattern string, fn HandlerFunc) *Router {
	if fn == nil {
		panic("HandleMatch: fn must be non-nil")
	}
	r.routes = append(r.routes, route{expr: xpath.MustCompile(pattern), fn: fn})
	return r
}

// CheckName implements NameChecker: a stanza whose root element name
// matches no named route and for which no expression routes exist is
// rejected before assembly.
func (r *Router) CheckName(name xml.Name) error {
	for _, rt := range r.routes {
		if rt.expr != nil || rt.name == name {
			return nil
		}
	}
	return errors.Errorf("no handler for stanza {%s}%s", name.Space, name.Local)
}

// Receive implements Receiver, dispatching the stanza to the first
// matching route.
func (r *Router) Receive(stanza *xmlquery.Node) error {
	name := xml.Name{Space: stanza.NamespaceURI, Local: stanza.Data}
	doc := stanza.Parent
	for _, rt := range r.routes {
		switch {
		case rt.expr != nil:
			if doc != nil && xmlquery.QuerySelector(doc, rt.expr) != nil {
				return rt.fn(stanza)
			}
		case rt.name == name:
			return rt.fn(stanza)
		}
	}
	return errors.Errorf("no handler for stanza {%s}%s", name.Space, name.Local)
}
