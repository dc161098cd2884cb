// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"encoding/json"

	"github.com/ManuGH/ad-normalizer/internal/log"
)

// DefaultAssetDuration is the duration in seconds used by the fallback list.
const DefaultAssetDuration = 10

// Asset is one entry of an asset list.
type Asset struct {
	URI      string  `json:"URI"`
	Duration float64 `json:"DURATION"`
}

// AssetList is the JSON envelope served to asset-list clients.
type AssetList struct {
	Assets []Asset `json:"ASSETS"`
}

// BuildAssetList pairs every ad that matches a ready creative with its
// duration, in document order.
func BuildAssetList(text []byte, ready []Creative, keyer Keyer) (AssetList, error) {
	doc, err := Parse(text)
	if err != nil {
		return AssetList{}, err
	}
	list := AssetList{Assets: []Asset{}}
	for _, ad := range doc.Ads() {
		la, err := ad.resolve()
		if err != nil {
			return AssetList{}, err
		}
		c, ok := findCreative(ready, keyer.key(la))
		if !ok {
			continue
		}
		seconds, err := ParseTimestamp(la.duration)
		if err != nil {
			return AssetList{}, err
		}
		list.Assets = append(list.Assets, Asset{URI: c.MasterPlaylistURL, Duration: seconds})
	}
	return list, nil
}

// FallbackAssetList lists every ready creative with DefaultAssetDuration.
func FallbackAssetList(ready []Creative) AssetList {
	list := AssetList{Assets: make([]Asset, 0, len(ready))}
	for _, c := range ready {
		list.Assets = append(list.Assets, Asset{URI: c.MasterPlaylistURL, Duration: DefaultAssetDuration})
	}
	return list
}

// EncodeAssetList renders the asset list as JSON, degrading to
// FallbackAssetList when the document cannot be walked.
func EncodeAssetList(text []byte, ready []Creative, keyer Keyer) []byte {
	list, err := BuildAssetList(text, ready, keyer)
	if err != nil {
		logger := log.WithComponent("adxml")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "assetlist.fallback").
			Int(log.FieldReady, len(ready)).
			Msg("using default durations for asset list")
		list = FallbackAssetList(ready)
	}
	out, err := json.Marshal(list)
	if err != nil {
		// Asset holds only strings and finite floats.
		return []byte(`{"ASSETS":[]}`)
	}
	return out
}
