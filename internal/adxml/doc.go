// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package adxml reads and rewrites VAST and VMAP ad documents.
//
// Documents are held as element trees so unknown elements, attributes and
// namespace prefixes survive a rewrite untouched. Extraction, rewriting and
// asset-list encoding walk the same ad sequence (Document.Ads) and derive keys
// with the same Keyer, so a creative that was extracted is always matched
// again when the response is rendered.
package adxml
