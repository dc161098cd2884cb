// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Kind distinguishes the two document flavours.
type Kind int

const (
	KindVAST Kind = iota
	KindVMAP
)

func (k Kind) String() string {
	if k == KindVMAP {
		return "vmap"
	}
	return "vast"
}

const (
	emptyVAST = `<?xml version="1.0" encoding="utf-8"?><VAST version="4.0"/>`
	emptyVMAP = `<?xml version="1.0" encoding="utf-8"?><vmap:VMAP xmlns:vmap="http://www.iab.net/vmap-1.0" version="1.0"/>`
)

var (
	ErrUnknownRoot  = errors.New("adxml: root element is neither VAST nor VMAP")
	ErrKindMismatch = errors.New("adxml: document kind mismatch")
	ErrMalformedAd  = errors.New("adxml: malformed ad")
)

// EmptyDocument returns the text of a valid document without ads.
func EmptyDocument(kind Kind) []byte {
	if kind == KindVMAP {
		return []byte(emptyVMAP)
	}
	return []byte(emptyVAST)
}

// Document is a parsed VAST or VMAP document.
type Document struct {
	kind Kind
	tree *etree.Document
}

// Parse reads a VAST or VMAP document. Non UTF-8 encodings declared in the
// XML prolog are decoded.
func Parse(data []byte) (*Document, error) {
	tree := etree.NewDocument()
	tree.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("adxml: parse: %w", err)
	}
	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("adxml: parse: %w", ErrUnknownRoot)
	}
	doc := &Document{tree: tree}
	switch root.Tag {
	case "VAST":
		doc.kind = KindVAST
	case "VMAP":
		doc.kind = KindVMAP
	default:
		return nil, fmt.Errorf("%w: <%s>", ErrUnknownRoot, root.FullTag())
	}
	return doc, nil
}

// ParseKind parses data and requires its root to be of the given kind.
func ParseKind(data []byte, kind Kind) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if doc.kind != kind {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, kind, doc.kind)
	}
	return doc, nil
}

// ParseOrEmpty parses data as the given kind. When that fails it returns the
// empty document of the same kind along with its text, plus the parse error.
func ParseOrEmpty(data []byte, kind Kind) (*Document, []byte, error) {
	doc, err := ParseKind(data, kind)
	if err == nil {
		return doc, data, nil
	}
	empty := EmptyDocument(kind)
	doc, perr := ParseKind(empty, kind)
	if perr != nil {
		// Unreachable with the built-in stubs.
		panic(perr)
	}
	return doc, empty, err
}

// Kind reports the document flavour.
func (d *Document) Kind() Kind { return d.kind }

// Ads returns every ad node in document order. For VMAP documents that is
// AdBreak order, then AdSource order, then Ad order within the embedded VAST.
// AdBreaks without inline VAST data contribute nothing.
func (d *Document) Ads() []Ad {
	root := d.tree.Root()
	if d.kind == KindVAST {
		return adsOf(root)
	}
	var ads []Ad
	for _, brk := range root.SelectElements("AdBreak") {
		for _, src := range brk.SelectElements("AdSource") {
			data := src.SelectElement("VASTAdData")
			if data == nil {
				continue
			}
			for _, vast := range data.SelectElements("VAST") {
				ads = append(ads, adsOf(vast)...)
			}
		}
	}
	return ads
}

func adsOf(vast *etree.Element) []Ad {
	els := vast.SelectElements("Ad")
	ads := make([]Ad, 0, len(els))
	for _, el := range els {
		ads = append(ads, Ad{el: el, container: vast})
	}
	return ads
}

// Bytes serializes the document indented by two spaces with explicit end
// tags on empty elements.
func (d *Document) Bytes() ([]byte, error) {
	d.tree.WriteSettings.CanonicalEndTags = true
	d.tree.Indent(2)
	return d.tree.WriteToBytes()
}
