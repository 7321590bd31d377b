package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
)

const classifierSystemPrompt = "Você é um especialista em classificação de ativos financeiros brasileiros."

// Classifier asks the model for the final asset type and category of every
// position in one batch call. The result array must line up one-to-one with
// the input; anything else is an error and the rule results stand.
type Classifier struct {
	provider Provider
	logger   *slog.Logger
}

var _ classify.SemanticClassifier = (*Classifier)(nil)

func NewClassifier(provider Provider, logger *slog.Logger) *Classifier {
	return &Classifier{provider: provider, logger: logger}
}

type wireClassification struct {
	Nome      string `json:"nome"`
	TipoAtivo string `json:"tipo_ativo"`
	Categoria string `json:"categoria"`
}

func (c *Classifier) ClassifyBatch(ctx context.Context, items []classify.Item) ([]classify.Classification, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt, err := c.buildPrompt(items)
	if err != nil {
		return nil, err
	}

	c.logger.Info("classifying positions with the model", slog.Int("positions", len(items)))

	raw, err := c.provider.Generate(ctx, classifierSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("semantic classification: %w", err)
	}

	var wire []wireClassification
	if err := DecodeLenient(raw, &wire); err != nil {
		return nil, fmt.Errorf("semantic classification: %w", err)
	}
	if len(wire) != len(items) {
		return nil, fmt.Errorf("semantic classification: model returned %d results for %d positions", len(wire), len(items))
	}

	out := make([]classify.Classification, len(items))
	for i, w := range wire {
		out[i] = classify.Classification{
			AssetType: normalizeAssetType(w.TipoAtivo),
			Category:  strings.TrimSpace(w.Categoria),
			Source:    classify.SourceSemantic,
		}
	}
	return out, nil
}

func (c *Classifier) buildPrompt(items []classify.Item) (string, error) {
	type promptItem struct {
		Nome  string `json:"nome"`
		Secao string `json:"secao"`
	}
	list := make([]promptItem, len(items))
	for i, item := range items {
		name := item.Name
		if name == "" {
			name = "Sem nome"
		}
		list[i] = promptItem{Nome: name, Secao: string(item.Section)}
	}
	encoded, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode positions: %w", err)
	}

	var b strings.Builder
	b.WriteString(`Analise esta lista de investimentos e categorize cada um.

Para cada investimento, determine:
1. "tipo_ativo": renda_fixa ou fundo_investimento
2. "categoria": o tipo do papel (CRI, CRA, LCI, LCA, CDB, Debênture, LIG, Letra Financeira, Título Público, Fundo Multimercado)

INVESTIMENTOS:
`)
	b.Write(encoded)
	b.WriteString(`

REGRAS:
- CRI (Certificado de Recebíveis Imobiliários) → categoria: CRI
- CRA (Certificado de Recebíveis do Agronegócio) → categoria: CRA
- LCI (Letra de Crédito Imobiliário) → categoria: LCI
- LCA (Letra de Crédito do Agronegócio) → categoria: LCA
- CDB (Certificado de Depósito Bancário) → categoria: CDB
- DEB / DEBÊNTURE → categoria: Debênture
- LIG (Letra Imobiliária Garantida) → categoria: LIG
- LF (Letra Financeira) → categoria: Letra Financeira
- NTN-B, NTN-F, LTN, LFT, Tesouro → categoria: Título Público
- FIC, FIM, fundos → categoria: Fundo Multimercado
- Títulos de renda fixa → tipo_ativo: renda_fixa
- Fundos de investimento → tipo_ativo: fundo_investimento

Retorne um JSON array com um objeto por investimento, NA MESMA ORDEM da lista:

[
  {
    "nome": "CRI - BROOKFIELD, VIA PORTFÓLIO GLP",
    "tipo_ativo": "renda_fixa",
    "categoria": "CRI"
  }
]

RETORNE APENAS O JSON, SEM TEXTO ADICIONAL.`)

	return b.String(), nil
}

// normalizeAssetType folds the model's loose spellings onto the two coarse
// types. Unrecognized values come back empty so the caller derives the type
// from the category or the section.
func normalizeAssetType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case classify.AssetTypeRendaFixa, "renda-fixa", "rendafixa":
		return classify.AssetTypeRendaFixa
	case classify.AssetTypeFundo, "fundo", "fundo_de_investimento", "fundos":
		return classify.AssetTypeFundo
	}
	return ""
}
