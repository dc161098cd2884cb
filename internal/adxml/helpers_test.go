// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var defaultPattern = regexp.MustCompile(`[^a-zA-Z0-9]`)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func mustParse(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := Parse(data)
	require.NoError(t, err)
	return doc
}

func defaultKeyer() Keyer {
	return Keyer{Field: KeyUniversalAdID, Pattern: defaultPattern}
}
