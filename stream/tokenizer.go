package stream

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	"github.com/andaru/xmppstream/streamerr"
)

// Tokenizer drives a Reader with events decoded from a byte stream.
//
// It adapts the encoding/xml token sequence onto the Reader's event
// interface, resolving namespace qualified names, stripping xmlns
// declaration attributes and rejecting XML features the protocol
// forbids before they reach the state machine (comments and DTDs; the
// Reader itself rejects processing instructions).
type Tokenizer struct {
	d       *xml.Decoder
	r       *Reader
	started bool
}

// NewTokenizer returns a Tokenizer decoding src into Reader events
func NewTokenizer(src io.Reader, r *Reader) *Tokenizer {
	if src == nil || r == nil {
		panic("NewTokenizer: both src and r must be non-nil")
	}
	d := xml.NewDecoder(src)
	// the protocol forbids entity declarations; leave Entity nil so any
	// non-predefined entity reference fails to decode
	d.Strict = true
	return &Tokenizer{d: d, r: r}
}

// Run consumes tokens until the document completes, the source reaches
// EOF, the context is cancelled, or an error occurs. A nil return means
// the stream ended in an orderly manner: footer seen and document ended.
func (t *Tokenizer) Run(ctx context.Context) error {
	for {
		// check for context cancellation before d.Token() blocks
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		token, err := t.d.Token()
		if err == io.EOF {
			if !t.started {
				return errors.WithStack(io.ErrUnexpectedEOF)
			}
			return t.r.EndDocument()
		}
		if err != nil {
			return streamerr.NotWellFormed(streamerr.WithText(err.Error()))
		}
		if err := t.dispatch(token); err != nil {
			return err
		}
	}
}

func (t *Tokenizer) dispatch(token xml.Token) error {
	if cd, ok := token.(xml.CharData); ok && t.r.State() != StateInStream &&
		len(bytes.TrimSpace(cd)) == 0 {
		// whitespace outside the stream root (prolog, between the header
		// and the declaration, trailing the footer) is insignificant
		return nil
	}
	if !t.started {
		if pi, ok := token.(xml.ProcInst); ok && pi.Target == "xml" {
			// the XML declaration is not a processing instruction
			return nil
		}
		if err := t.r.BeginDocument(); err != nil {
			return err
		}
		t.started = true
	}
	switch token := token.(type) {
	case xml.StartElement:
		return t.r.BeginElement(token.Name, elementAttrs(token.Attr))
	case xml.EndElement:
		return t.r.EndElement(token.Name)
	case xml.CharData:
		return t.r.Text(string(token))
	case xml.ProcInst:
		return t.r.ProcessingInstruction(token.Target, string(token.Inst))
	case xml.Comment:
		return streamerr.RestrictedXML(
			streamerr.WithText("comments are not allowed on a stream"))
	case xml.Directive:
		return streamerr.RestrictedXML(
			streamerr.WithText("DTDs are not allowed on a stream"))
	}
	return nil
}

// elementAttrs returns attrs with xmlns declarations stripped. Prefix
// bindings are scoping detail the decoder has already applied to
// element and attribute names.
func elementAttrs(attrs []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Name.Space == "xmlns" ||
			(attr.Name.Space == "" && attr.Name.Local == "xmlns") {
			continue
		}
		out = append(out, attr)
	}
	return out
}
