// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

func vastLookup() *mapLookup {
	return &mapLookup{entries: map[string]*transcode.Info{
		"AAA111": completed("https://assets.example.com/aaa/index.m3u8"),
		"CCC333": {Status: transcode.StatusPackaging},
	}}
}

func TestNormalizeVAST(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	reporter := &recordingReporter{}
	n := New(Options{Keyer: testKeyer(), Lookup: vastLookup(), Dispatcher: dispatcher, Reporter: reporter})

	res := n.Normalize(context.Background(), Request{Kind: adxml.KindVAST, Body: fixture(t, "vast.xml"), Subdomain: "tenant"})
	n.Wait()

	require.Len(t, res.Assets, 1)
	assert.Equal(t, "https://assets.example.com/aaa/index.m3u8", res.Assets[0].MasterPlaylistURL)
	assert.False(t, res.Substituted)
	assert.Equal(t, []adxml.Creative{{CreativeID: "BBB222", MasterPlaylistURL: "https://cdn.example.com/ad2/full.mp4"}}, res.Missing())
	assert.Equal(t, res.Missing(), dispatcher.Calls())
	assert.Equal(t, []reportCall{{"tenant", 1, 1, 0}}, reporter.calls)

	body := string(res.XMLBody())
	assert.Contains(t, body, `id="ad-1"`)
	assert.NotContains(t, body, `id="ad-2"`)
	assert.NotContains(t, body, `id="ad-3"`)
	assert.Contains(t, body, "https://assets.example.com/aaa/index.m3u8")

	assert.JSONEq(t, `{"ASSETS":[{"URI":"https://assets.example.com/aaa/index.m3u8","DURATION":15}]}`, string(res.AssetListBody()))
}

func TestNormalizeVMAP(t *testing.T) {
	lookup := &mapLookup{entries: map[string]*transcode.Info{
		"MID1": completed("https://assets.example.com/mid1/index.m3u8"),
	}}
	dispatcher := &recordingDispatcher{}
	n := New(Options{Keyer: testKeyer(), Lookup: lookup, Dispatcher: dispatcher})

	res := n.Normalize(context.Background(), Request{Kind: adxml.KindVMAP, Body: fixture(t, "vmap.xml")})
	n.Wait()

	assert.Len(t, res.Assets, 1)
	assert.Len(t, dispatcher.Calls(), 2)

	doc, err := adxml.Parse(res.XMLBody())
	require.NoError(t, err)
	require.Len(t, doc.Ads(), 1)
	assert.Equal(t, "mid-1", doc.Ads()[0].ID())
}

func TestNormalizeSubstitutesUnparseableDocument(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	n := New(Options{Keyer: testKeyer(), Lookup: &mapLookup{}, Dispatcher: dispatcher})

	for _, kind := range []adxml.Kind{adxml.KindVAST, adxml.KindVMAP} {
		res := n.Normalize(context.Background(), Request{Kind: kind, Body: []byte("<html>oops</html>")})
		assert.True(t, res.Substituted)
		assert.Equal(t, adxml.EmptyDocument(kind), res.XML)
		assert.Empty(t, res.Assets)

		doc, err := adxml.ParseKind(res.XMLBody(), kind)
		require.NoError(t, err)
		assert.Empty(t, doc.Ads())
		assert.Equal(t, `{"ASSETS":[]}`, string(res.AssetListBody()))
	}
	n.Wait()
	assert.Empty(t, dispatcher.Calls())
}

func TestNormalizeDoesNotWaitForDispatch(t *testing.T) {
	dispatcher := &recordingDispatcher{release: make(chan struct{})}
	n := New(Options{Keyer: testKeyer(), Lookup: vastLookup(), Dispatcher: dispatcher})

	done := make(chan *Result, 1)
	go func() {
		done <- n.Normalize(context.Background(), Request{Kind: adxml.KindVAST, Body: fixture(t, "vast.xml")})
	}()

	select {
	case res := <-done:
		assert.Len(t, res.Assets, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("Normalize blocked on a pending dispatch")
	}
	assert.Empty(t, dispatcher.Calls())

	close(dispatcher.release)
	n.Wait()
	assert.Len(t, dispatcher.Calls(), 1)
}

func TestDispatchSurvivesRequestCancellation(t *testing.T) {
	dispatcher := &recordingDispatcher{release: make(chan struct{})}
	n := New(Options{Keyer: testKeyer(), Lookup: vastLookup(), Dispatcher: dispatcher})

	ctx, cancel := context.WithCancel(context.Background())
	n.Normalize(ctx, Request{Kind: adxml.KindVAST, Body: fixture(t, "vast.xml")})
	cancel()
	close(dispatcher.release)
	n.Wait()

	require.Len(t, dispatcher.ctxErrs, 1)
	assert.NoError(t, dispatcher.ctxErrs[0])
}

func TestDispatchErrorsAndPanicsAreContained(t *testing.T) {
	for name, d := range map[string]*recordingDispatcher{
		"error": {err: errors.New("encore down")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			n := New(Options{Keyer: testKeyer(), Lookup: vastLookup(), Dispatcher: d})
			res := n.Normalize(context.Background(), Request{Kind: adxml.KindVAST, Body: fixture(t, "vast.xml")})
			n.Wait()
			assert.Len(t, res.Assets, 1)
			assert.Len(t, d.Calls(), 1)
		})
	}
}

func TestDispatchDeduplicatesCreatives(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	n := New(Options{Keyer: testKeyer(), Lookup: &mapLookup{}, Dispatcher: dispatcher})

	n.DispatchMissing(context.Background(), []adxml.Creative{
		{CreativeID: "same", MasterPlaylistURL: "https://src/1.mp4"},
		{CreativeID: "same", MasterPlaylistURL: "https://src/2.mp4"},
		{CreativeID: "other", MasterPlaylistURL: "https://src/3.mp4"},
	})
	n.Wait()
	assert.Len(t, dispatcher.Calls(), 2)
}

func TestDispatchSharesConcurrentSubmissions(t *testing.T) {
	dispatcher := &recordingDispatcher{release: make(chan struct{})}
	n := New(Options{Keyer: testKeyer(), Lookup: &mapLookup{}, Dispatcher: dispatcher})

	c := []adxml.Creative{{CreativeID: "hot", MasterPlaylistURL: "https://src/hot.mp4"}}
	n.DispatchMissing(context.Background(), c)
	n.DispatchMissing(context.Background(), c)
	// Give both goroutines the chance to join the same flight.
	time.Sleep(50 * time.Millisecond)
	close(dispatcher.release)
	n.Wait()

	assert.Len(t, dispatcher.Calls(), 1)
}

func TestNormalizeWithoutDispatcher(t *testing.T) {
	n := New(Options{Keyer: testKeyer(), Lookup: vastLookup()})
	res := n.Normalize(context.Background(), Request{Kind: adxml.KindVAST, Body: fixture(t, "vast.xml")})
	n.Wait()
	assert.Len(t, res.Missing(), 1)
}

func TestNormalizeDropsBlacklistedCreatives(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	reporter := &recordingReporter{}
	n := New(Options{
		Keyer:      testKeyer(),
		Lookup:     vastLookup(),
		Dispatcher: dispatcher,
		Blacklist:  setBlacklist{"https://cdn.example.com/ad2/full.mp4": true},
		Reporter:   reporter,
	})

	res := n.Normalize(context.Background(), Request{Kind: adxml.KindVAST, Body: fixture(t, "vast.xml")})
	n.Wait()

	assert.Empty(t, res.Missing())
	assert.Empty(t, dispatcher.Calls())
	assert.Equal(t, []reportCall{{"", 1, 0, 1}}, reporter.calls)
}

func TestPreIngest(t *testing.T) {
	lookup := &mapLookup{entries: map[string]*transcode.Info{
		"httpssrcreadymp4": completed("https://assets/ready.m3u8"),
		"httpssrcbusymp4":  {Status: transcode.StatusTranscoding},
	}}
	dispatcher := &recordingDispatcher{}
	n := New(Options{Keyer: testKeyer(), Lookup: lookup, Dispatcher: dispatcher})

	notYet := n.PreIngest(context.Background(), []string{
		"https://src/ready.mp4",
		"https://src/busy.mp4",
		"https://src/new.mp4",
		"  ",
	})
	n.Wait()

	assert.Equal(t, 2, notYet)
	assert.Equal(t, []adxml.Creative{{CreativeID: "httpssrcnewmp4", MasterPlaylistURL: "https://src/new.mp4"}}, dispatcher.Calls())
}
