// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Ad is one <Ad> element together with the <VAST> element that holds it.
type Ad struct {
	el        *etree.Element
	container *etree.Element
}

// ID returns the ad's id attribute.
func (a Ad) ID() string {
	return a.el.SelectAttrValue("id", "")
}

// linearAd is the resolved linear creative of an ad.
type linearAd struct {
	Ad
	universalAdID string
	duration      string
	renditions    []Rendition
	best          Rendition
}

// resolve walks Ad/InLine/Creatives/Creative to the first creative carrying a
// Linear element and collects what keying and rewriting need.
func (a Ad) resolve() (linearAd, error) {
	inline := a.el.SelectElement("InLine")
	if inline == nil {
		return linearAd{}, fmt.Errorf("%w: ad %q has no InLine", ErrMalformedAd, a.ID())
	}
	creatives := inline.SelectElement("Creatives")
	if creatives == nil {
		return linearAd{}, fmt.Errorf("%w: ad %q has no Creatives", ErrMalformedAd, a.ID())
	}
	var creative, linear *etree.Element
	for _, c := range creatives.SelectElements("Creative") {
		if l := c.SelectElement("Linear"); l != nil {
			creative, linear = c, l
			break
		}
	}
	if linear == nil {
		return linearAd{}, fmt.Errorf("%w: ad %q has no linear creative", ErrMalformedAd, a.ID())
	}
	mediaFiles := linear.SelectElement("MediaFiles")
	if mediaFiles == nil {
		return linearAd{}, fmt.Errorf("%w: ad %q has no MediaFiles", ErrMalformedAd, a.ID())
	}
	files := mediaFiles.SelectElements("MediaFile")
	renditions := make([]Rendition, 0, len(files))
	for _, f := range files {
		renditions = append(renditions, renditionFrom(f))
	}
	best, err := SelectBestRendition(renditions)
	if err != nil {
		return linearAd{}, fmt.Errorf("%w: ad %q: %w", ErrMalformedAd, a.ID(), err)
	}

	la := linearAd{Ad: a, renditions: renditions, best: best}
	if id := creative.SelectElement("UniversalAdId"); id != nil {
		la.universalAdID = strings.TrimSpace(id.Text())
	}
	if d := linear.SelectElement("Duration"); d != nil {
		la.duration = strings.TrimSpace(d.Text())
	}
	return la, nil
}

// replaceMedia points the selected rendition at url as HLS and drops the
// other renditions of the creative.
func (la linearAd) replaceMedia(url string) {
	el := la.best.el
	setText(el, url)
	el.CreateAttr("type", HLSMediaType)
	for _, r := range la.renditions {
		if r.el != el {
			if parent := r.el.Parent(); parent != nil {
				parent.RemoveChild(r.el)
			}
		}
	}
}

// remove detaches the ad from its VAST container.
func (la linearAd) remove() {
	la.container.RemoveChild(la.el)
}

// setText replaces the element's character data, keeping CDATA framing when
// the original URL used it.
func setText(el *etree.Element, text string) {
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok && cd.IsCData() {
			el.SetCData(text)
			return
		}
	}
	el.SetText(text)
}
