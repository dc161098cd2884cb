// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	vast := mustParse(t, fixture(t, "vast.xml"))
	assert.Equal(t, KindVAST, vast.Kind())
	assert.Len(t, vast.Ads(), 3)

	vmap := mustParse(t, fixture(t, "vmap.xml"))
	assert.Equal(t, KindVMAP, vmap.Kind())
	assert.Len(t, vmap.Ads(), 3)
}

func TestParseRejectsUnknownRoot(t *testing.T) {
	_, err := Parse([]byte(`<Playlist/>`))
	assert.ErrorIs(t, err, ErrUnknownRoot)

	_, err = Parse([]byte(``))
	assert.Error(t, err)

	_, err = Parse([]byte(`<VAST version="4.0"`))
	assert.Error(t, err)
}

func TestParseKindMismatch(t *testing.T) {
	_, err := ParseKind(fixture(t, "vast.xml"), KindVMAP)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestParseOrEmpty(t *testing.T) {
	doc, text, err := ParseOrEmpty([]byte("not xml"), KindVMAP)
	assert.Error(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, KindVMAP, doc.Kind())
	assert.Equal(t, EmptyDocument(KindVMAP), text)
	assert.Empty(t, doc.Ads())

	in := fixture(t, "vast.xml")
	doc, text, err = ParseOrEmpty(in, KindVAST)
	require.NoError(t, err)
	assert.Equal(t, in, text)
	assert.Len(t, doc.Ads(), 3)
}

func TestEmptyDocumentsParse(t *testing.T) {
	for _, kind := range []Kind{KindVAST, KindVMAP} {
		doc, err := ParseKind(EmptyDocument(kind), kind)
		require.NoError(t, err, kind.String())
		assert.Empty(t, doc.Ads())
	}
}

func TestParseDeclaredCharset(t *testing.T) {
	data := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><VAST version="3.0"><Ad id="x"><InLine><AdTitle>Caf`), 0xe9)
	data = append(data, []byte(`</AdTitle></InLine></Ad></VAST>`)...)

	doc, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Café", doc.Ads()[0].el.SelectElement("InLine").SelectElement("AdTitle").Text())
}

func TestVMAPAdOrderAndBreaksWithoutInlineData(t *testing.T) {
	doc := mustParse(t, fixture(t, "vmap.xml"))
	var ids []string
	for _, ad := range doc.Ads() {
		ids = append(ids, ad.ID())
	}
	assert.Equal(t, []string{"pre-1", "pre-2", "mid-1"}, ids)
}
