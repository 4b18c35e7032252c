package xmlutil

import (
	"encoding/xml"
	"sort"
)

// PrefixMap is a prefix to namespace URI map.
//
// The empty prefix denotes the default namespace binding. A PrefixMap is
// used both when decoding (to recover prefix bindings from xmlns
// attributes) and when encoding, where PrefixOf selects the rendering of
// namespace qualified names against the bindings declared on a stream
// header.
type PrefixMap map[string]string

// NewPrefixMap returns a PrefixMap, containing the passed XML attributes.
// Attributes which are not xmlns declarations are ignored.
func NewPrefixMap(attrs ...xml.Attr) PrefixMap {
	pmap := PrefixMap{}
	for _, attr := range attrs {
		switch {
		case attr.Name.Space == "xmlns":
			pmap[attr.Name.Local] = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			pmap[""] = attr.Value
		}
	}
	return pmap
}

// Attr returns the prefix map contents as a series of xmlns:<prefix>=<nsuri>
// attributes, sorted lexically by prefix. The default binding, if present,
// is returned as a bare xmlns=<nsuri> attribute and sorts first.
func (m PrefixMap) Attr() (a []xml.Attr) {
	for k, v := range m {
		if k == "" {
			a = append(a, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: v})
			continue
		}
		a = append(a, xml.Attr{Name: xml.Name{Space: "xmlns", Local: k}, Value: v})
	}
	if len(a) > 0 {
		// sort lexically by prefix, default binding first
		sort.Slice(a, func(i int, j int) bool {
			pi, pj := a[i].Name.Local, a[j].Name.Local
			if a[i].Name.Space == "" {
				pi = ""
			}
			if a[j].Name.Space == "" {
				pj = ""
			}
			return pi < pj
		})
	}
	return a
}

// Namespace returns the namespace URI for the given prefix
func (m PrefixMap) Namespace(prefix string) string { return m[prefix] }

// Prefix returns any prefixes found for the namespace URI
func (m PrefixMap) Prefix(nsURI string) (pfxes []string) {
	for k, v := range m {
		if nsURI == v {
			pfxes = append(pfxes, k)
		}
	}
	return pfxes
}

// PrefixOf returns the prefix an element in the namespace nsURI should be
// rendered with, preferring the default (empty) binding and otherwise the
// shortest matching prefix. ok is false when no binding covers nsURI, in
// which case the namespace must be declared locally.
func (m PrefixMap) PrefixOf(nsURI string) (prefix string, ok bool) {
	found := false
	for k, v := range m {
		if v != nsURI {
			continue
		}
		if k == "" {
			return "", true
		}
		if !found || len(k) < len(prefix) || (len(k) == len(prefix) && k < prefix) {
			prefix, found = k, true
		}
	}
	return prefix, found
}

// Clone returns a copy of the prefix map
func (m PrefixMap) Clone() PrefixMap {
	out := make(PrefixMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
