// Package classify assigns every extracted position an asset type and a
// category. The rule path runs an Aho-Corasick keyword engine with a fuzzy
// fallback; the semantic path, when enabled, replaces the rule guess
// wholesale. Classification never fails a run: on any error the rule result
// stands.
package classify

import (
	"strings"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

// Coarse asset types as emitted in the classified report.
const (
	AssetTypeRendaFixa = "renda_fixa"
	AssetTypeFundo     = "fundo_investimento"
)

// Category labels for Brazilian instruments.
const (
	CategoryCRI               = "CRI"
	CategoryCRA               = "CRA"
	CategoryLCI               = "LCI"
	CategoryLCA               = "LCA"
	CategoryLIG               = "LIG"
	CategoryCDB               = "CDB"
	CategoryDebenture         = "Debênture"
	CategoryLetraFinanceira   = "Letra Financeira"
	CategoryTituloPublico     = "Título Público"
	CategoryFundoMultimercado = "Fundo Multimercado"
)

// Classification source markers, for logs and run reports.
const (
	SourceRules    = "rules"
	SourceFuzzy    = "fuzzy"
	SourceCache    = "cache"
	SourceSemantic = "semantic"
)

// Item is one position to classify.
type Item struct {
	Name    string
	Section section.Section
}

// Classification is the single authoritative result for a position. A
// semantic result replaces the rule-based one wholesale, never per field.
type Classification struct {
	AssetType string `json:"asset_type"`
	Category  string `json:"category"`
	Source    string `json:"-"`
}

func (c Classification) IsZero() bool {
	return c.AssetType == "" && c.Category == ""
}

var rendaFixaMarkers = []string{
	"CRI", "CRA", "DEB", "CDB", "LCI", "LCA", "LIG",
	"NTN-B", "NTN-F", "LTN", "LFT",
	"TÍTULO PÚBLICO", "TESOURO", "LETRA FINANCEIRA",
}

// DeriveAssetType maps a category label onto the coarse asset type. Unknown
// categories return empty so the caller can fall back to the section.
func DeriveAssetType(category string) string {
	upper := strings.ToUpper(strings.TrimSpace(category))
	if upper == "" {
		return ""
	}

	if strings.Contains(upper, "FUNDO") || strings.Contains(upper, "MULTIMERCADO") {
		return AssetTypeFundo
	}
	for _, marker := range rendaFixaMarkers {
		if strings.Contains(upper, marker) {
			return AssetTypeRendaFixa
		}
	}
	return ""
}

// assetTypeFromSection is the last-resort derivation: the statement already
// groups fixed income apart from funds.
func assetTypeFromSection(sec section.Section) string {
	switch sec.Group() {
	case section.GroupRendaFixa:
		return AssetTypeRendaFixa
	case section.GroupAlternativos:
		return AssetTypeFundo
	}
	return ""
}
