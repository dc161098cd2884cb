// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteVASTFiltersAndReplaces(t *testing.T) {
	in := fixture(t, "vast.xml")
	ready := []Creative{
		{CreativeID: "CCC333", MasterPlaylistURL: "https://assets.example.com/ccc/index.m3u8"},
		{CreativeID: "AAA111", MasterPlaylistURL: "https://assets.example.com/aaa/index.m3u8"},
	}

	out := Rewrite(in, ready, defaultKeyer())
	doc := mustParse(t, out)
	ads := doc.Ads()
	require.Len(t, ads, 2)
	assert.Equal(t, "ad-1", ads[0].ID())
	assert.Equal(t, "ad-3", ads[1].ID())

	la, err := ads[0].resolve()
	require.NoError(t, err)
	require.Len(t, la.renditions, 1)
	assert.Equal(t, "https://assets.example.com/aaa/index.m3u8", la.best.URL)
	assert.Equal(t, HLSMediaType, la.best.Type)
	assert.Equal(t, "2000", la.best.Bitrate, "other attributes of the selected rendition are kept")

	text := string(out)
	assert.Contains(t, text, `<![CDATA[https://assets.example.com/aaa/index.m3u8]]>`)
	assert.Contains(t, text, `<Flag>keep-me</Flag>`)
	assert.Contains(t, text, `<Impression id="imp-1"><![CDATA[https://track.example.com/impression/1]]></Impression>`)
	assert.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.NotContains(t, text, "ad2")
}

func TestRewriteReplacesPlainTextMedia(t *testing.T) {
	ready := []Creative{{CreativeID: "BBB222", MasterPlaylistURL: "https://assets.example.com/bbb/index.m3u8"}}
	out := string(Rewrite(fixture(t, "vast.xml"), ready, defaultKeyer()))

	assert.Contains(t, out, `>https://assets.example.com/bbb/index.m3u8</MediaFile>`)
	assert.Contains(t, out, `<CompanionAds></CompanionAds>`)
}

func TestRewriteVMAPKeepsAdBreaks(t *testing.T) {
	ready := []Creative{{CreativeID: "PRE2", MasterPlaylistURL: "https://assets.example.com/pre2/index.m3u8"}}
	out := Rewrite(fixture(t, "vmap.xml"), ready, defaultKeyer())

	doc := mustParse(t, out)
	assert.Len(t, doc.tree.Root().SelectElements("AdBreak"), 3)

	ads := doc.Ads()
	require.Len(t, ads, 1)
	assert.Equal(t, "pre-2", ads[0].ID())

	text := string(out)
	assert.Contains(t, text, `<vmap:AdBreak timeOffset="00:10:00.000" breakType="linear" breakId="midroll-1">`)
	assert.Contains(t, text, `<VAST version="4.0"></VAST>`, "emptied midroll VAST is written with an explicit end tag")
	assert.Contains(t, text, `<vmap:AdTagURI templateType="vast4"><![CDATA[https://ads.example.com/postroll]]></vmap:AdTagURI>`)
}

func TestRewriteVMAPWithoutReadyCreatives(t *testing.T) {
	const in = `<?xml version="1.0" encoding="UTF-8"?>
<vmap:VMAP xmlns:vmap="http://www.iab.net/vmap-1.0" version="1.0">
<vmap:AdBreak timeOffset="start" breakType="linear"><vmap:AdSource><vmap:VASTAdData>
<VAST xmlns:vast="http://www.iab.net/VAST" version="4.0"><Ad id="1"><InLine><Creatives><Creative>
<UniversalAdId>X</UniversalAdId><Linear><Duration>00:00:10</Duration>
<MediaFiles><MediaFile bitrate="1">https://x/1.mp4</MediaFile></MediaFiles></Linear>
</Creative></Creatives></InLine></Ad></VAST>
</vmap:VASTAdData></vmap:AdSource></vmap:AdBreak>
</vmap:VMAP>`

	out := string(Rewrite([]byte(in), nil, defaultKeyer()))

	want := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<vmap:VMAP xmlns:vmap="http://www.iab.net/vmap-1.0" version="1.0">`,
		`  <vmap:AdBreak timeOffset="start" breakType="linear">`,
		`    <vmap:AdSource>`,
		`      <vmap:VASTAdData>`,
		`        <VAST xmlns:vast="http://www.iab.net/VAST" version="4.0"></VAST>`,
		`      </vmap:VASTAdData>`,
		`    </vmap:AdSource>`,
		`  </vmap:AdBreak>`,
		`</vmap:VMAP>`,
	}
	assert.Equal(t, strings.Join(want, "\n"), strings.TrimSpace(out))
}

func TestRewriteReturnsOriginalOnFailure(t *testing.T) {
	bad := []byte(`<VAST version="4.0"`)
	assert.Equal(t, bad, Rewrite(bad, nil, defaultKeyer()))

	malformed := []byte(`<VAST version="4.0"><Ad id="x"><Wrapper/></Ad></VAST>`)
	assert.Equal(t, malformed, Rewrite(malformed, []Creative{{CreativeID: "x"}}, defaultKeyer()))
}

func TestRewriteDuplicateKeysFirstMatchWins(t *testing.T) {
	const in = `<VAST version="4.0">
<Ad id="a"><InLine><Creatives><Creative><UniversalAdId>DUP</UniversalAdId><Linear><Duration>00:00:05</Duration>
<MediaFiles><MediaFile>https://x/a.mp4</MediaFile></MediaFiles></Linear></Creative></Creatives></InLine></Ad>
<Ad id="b"><InLine><Creatives><Creative><UniversalAdId>D-U-P</UniversalAdId><Linear><Duration>00:00:06</Duration>
<MediaFiles><MediaFile>https://x/b.mp4</MediaFile></MediaFiles></Linear></Creative></Creatives></InLine></Ad>
</VAST>`
	ready := []Creative{
		{CreativeID: "DUP", MasterPlaylistURL: "https://assets/first.m3u8"},
		{CreativeID: "DUP", MasterPlaylistURL: "https://assets/second.m3u8"},
	}

	doc := mustParse(t, Rewrite([]byte(in), ready, defaultKeyer()))
	ads := doc.Ads()
	require.Len(t, ads, 2, "both ads sanitize to the same key")
	for _, ad := range ads {
		la, err := ad.resolve()
		require.NoError(t, err)
		assert.Equal(t, "https://assets/first.m3u8", la.best.URL)
	}
}

func TestRewriteIsIdempotentForReadyAds(t *testing.T) {
	ready := []Creative{{CreativeID: "AAA111", MasterPlaylistURL: "https://assets.example.com/aaa/index.m3u8"}}
	keyer := Keyer{Field: KeyUniversalAdID, Pattern: defaultPattern}

	once := Rewrite(fixture(t, "vast.xml"), ready, keyer)
	twice := Rewrite(once, ready, keyer)
	assert.Equal(t, string(once), string(twice))
}
