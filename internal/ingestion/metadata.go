package ingestion

import (
	"net/url"
	"path"
	"strings"
)

// InferredMetadata holds the manufacturer, equipment category, and doc type
// inferred from a documentation source's URL or file name. CLI flags take
// precedence over inferred values — this is the best-effort fallback when the
// operator doesn't specify explicit metadata.
type InferredMetadata struct {
	// Manufacturer is the equipment manufacturer label (linde, atlas-copco,
	// kaeser, ingersoll-rand, generic).
	Manufacturer string
	// Category is the equipment category (compressor, dryer, generator,
	// boiler, pump, generic).
	Category string
	// DocType classifies the documentation kind (manual, datasheet, safety,
	// catalog).
	DocType string
}

// alias pairs a name fragment found in hostnames or file names with its
// canonical label. Lists are matched in order; the first hit wins.
type alias struct {
	frag  string
	label string
}

// manufacturerAliases maps name fragments to the canonical manufacturer label.
var manufacturerAliases = []alias{
	{"linde", "linde"},
	{"atlascopco", "atlas-copco"},
	{"atlas-copco", "atlas-copco"},
	{"atlas_copco", "atlas-copco"},
	{"kaeser", "kaeser"},
	{"ingersoll", "ingersoll-rand"},
	{"boge", "boge"},
}

// categoryAliases maps name fragments (Spanish and English, since the doc
// corpus mixes both) to the canonical equipment category.
var categoryAliases = []alias{
	{"compresor", "compressor"},
	{"compressor", "compressor"},
	{"secador", "dryer"},
	{"dryer", "dryer"},
	{"generador", "generator"},
	{"generator", "generator"},
	{"caldera", "boiler"},
	{"boiler", "boiler"},
	{"bomba", "pump"},
	{"pump", "pump"},
	{"nitrogeno", "nitrogen-plant"},
	{"nitrogen", "nitrogen-plant"},
	{"oxigeno", "oxygen-plant"},
	{"oxygen", "oxygen-plant"},
}

// docTypeAliases maps name fragments to the canonical documentation kind.
var docTypeAliases = []alias{
	{"manual", "manual"},
	{"instrucciones", "manual"},
	{"instructions", "manual"},
	{"datasheet", "datasheet"},
	{"ficha", "datasheet"},
	{"especific", "datasheet"},
	{"spec", "datasheet"},
	{"seguridad", "safety"},
	{"safety", "safety"},
	{"msds", "safety"},
	{"catalogo", "catalog"},
	{"catalog", "catalog"},
	{"tarifa", "catalog"},
}

// InferMetadata inspects the documentation source (URL or file path) and
// returns best-effort metadata. If nothing matches, the returned fields
// contain sensible defaults ("generic", "generic", "manual").
func InferMetadata(location string) InferredMetadata {
	m := InferredMetadata{
		Manufacturer: "generic",
		Category:     "generic",
		DocType:      "manual",
	}

	haystack := strings.ToLower(location)
	if parsed, err := url.Parse(location); err == nil && parsed.Hostname() != "" {
		// For URLs, match against the hostname plus the file name so a long
		// query string never produces spurious hits.
		haystack = strings.ToLower(parsed.Hostname() + "/" + path.Base(parsed.Path))
	}

	if label, ok := matchAlias(haystack, manufacturerAliases); ok {
		m.Manufacturer = label
	}
	if label, ok := matchAlias(haystack, categoryAliases); ok {
		m.Category = label
	}
	if label, ok := matchAlias(haystack, docTypeAliases); ok {
		m.DocType = label
	}

	return m
}

// matchAlias returns the label of the first alias whose fragment occurs in
// haystack.
func matchAlias(haystack string, aliases []alias) (string, bool) {
	for _, a := range aliases {
		if strings.Contains(haystack, a.frag) {
			return a.label, true
		}
	}
	return "", false
}
