package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/semantic"
)

const enrichSystemPrompt = "Você é um especialista em empresas brasileiras."

const companyNamePrompt = `Extraia o nome completo e oficial da empresa deste ativo financeiro.

ATIVO: "%s"

INSTRUÇÕES:
1. Identifique a empresa emissora do ativo
2. Retorne o nome OFICIAL completo (razão social)
3. Inclua sufixos como S.A., LTDA, etc.
4. Remova prefixos como "CRI -", "CRA -", "DEB -", "LCI -", etc.
5. Se o nome tiver abreviações, tente expandir para o nome completo
6. Se não conseguir identificar a empresa, use "NÃO IDENTIFICADO"

EXEMPLOS:
- "CRI - BROOKFIELD, VIA PORTFÓLIO GLP" → "BROOKFIELD INCORPORACOES BRASIL S.A."
- "LCI - BANCO BRADESCO S.A." → "BANCO BRADESCO S.A."
- "DEB INCENTIVADA - ENAUTA PARTICIPACOES S.A." → "ENAUTA PARTICIPACOES S.A."
- "KAPITALO LONG BIASED FIM" → "KAPITALO INVESTIMENTOS LTDA"

Responda com JSON: {"empresa": "NOME DA EMPRESA"}`

const cnpjCandidatesPrompt = `Baseado no nome da empresa abaixo, informe o CNPJ (ou os CNPJs mais prováveis se houver múltiplas filiais/holdings).

EMPRESA: "%s"

IMPORTANTE:
- Retorne APENAS os números do CNPJ (14 dígitos)
- Se houver múltiplas empresas com nomes similares, liste até 3 CNPJs
- Se não souber com certeza, retorne a lista vazia

EXEMPLOS:
- BANCO BRADESCO S.A. → 60746948000112
- BROOKFIELD INCORPORACOES BRASIL S.A. → 07114232000119

Responda com JSON: {"cnpjs": ["60746948000112"]}`

// companyName asks the model which company issued the asset. An empty
// return with a nil error means the model could not identify one.
func (s *Service) companyName(ctx context.Context, assetName string) (string, error) {
	raw, err := s.gen.Generate(ctx, enrichSystemPrompt, fmt.Sprintf(companyNamePrompt, assetName))
	if err != nil {
		return "", fmt.Errorf("company name extraction: %w", err)
	}

	var out struct {
		Empresa string `json:"empresa"`
	}
	if err := semantic.DecodeLenient(raw, &out); err != nil {
		return "", fmt.Errorf("company name extraction: %w", err)
	}

	company := strings.Trim(strings.TrimSpace(out.Empresa), `"'`)
	if company == "" || strings.EqualFold(company, "NÃO IDENTIFICADO") {
		return "", nil
	}
	return company, nil
}

// cnpjCandidates asks the model for up to three CNPJ guesses for a company.
// Anything that is not exactly 14 digits after cleaning is discarded.
func (s *Service) cnpjCandidates(ctx context.Context, company string) ([]string, error) {
	raw, err := s.gen.Generate(ctx, enrichSystemPrompt, fmt.Sprintf(cnpjCandidatesPrompt, company))
	if err != nil {
		return nil, fmt.Errorf("cnpj candidate search: %w", err)
	}

	var out struct {
		CNPJs []string `json:"cnpjs"`
	}
	if err := semantic.DecodeLenient(raw, &out); err != nil {
		return nil, fmt.Errorf("cnpj candidate search: %w", err)
	}

	var candidates []string
	for _, c := range out.CNPJs {
		digits := cleanCNPJ(c)
		if len(digits) == 14 {
			candidates = append(candidates, digits)
		}
	}
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates, nil
}
