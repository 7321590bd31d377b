package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/record"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/layout"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

const extractorSystemPrompt = "Você é um especialista em extração de dados financeiros de relatórios bancários em PDF."

// Extractor asks the model for the whole position table in one call over the
// raw page text. It takes the place of the section/parser/name chain when the
// printed layout has drifted too far for the rule path.
type Extractor struct {
	provider Provider
	expected int
	logger   *slog.Logger
}

// NewExtractor creates a semantic extractor. expectedRecords, when positive,
// is passed to the model as a validation hint and checked against the result.
func NewExtractor(provider Provider, expectedRecords int, logger *slog.Logger) *Extractor {
	return &Extractor{provider: provider, expected: expectedRecords, logger: logger}
}

// wireValue accepts both a pt-BR formatted string and a bare JSON number.
// Bare numbers get their decimal point rewritten to the comma the normalizer
// expects.
type wireValue string

func (v *wireValue) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = wireValue(strings.TrimSpace(str))
		return nil
	}
	*v = wireValue(strings.ReplaceAll(s, ".", ","))
	return nil
}

func (v wireValue) ptr() *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

// wireRecord mirrors the JSON object the prompt asks for, one per position.
type wireRecord struct {
	Tipo              wireValue `json:"tipo"`
	Nome              wireValue `json:"nome"`
	DataEmissao       wireValue `json:"data_emissao"`
	DataAplicacao     wireValue `json:"data_aplicacao"`
	DataVencimento    wireValue `json:"data_vencimento"`
	AplicacaoInicial  wireValue `json:"aplicacao_inicial"`
	Indexador         wireValue `json:"indexador"`
	TxEmis            wireValue `json:"tx_emis"`
	TxAA              wireValue `json:"tx_aa"`
	Quantidade        wireValue `json:"quantidade"`
	PrecoAtual        wireValue `json:"preco_atual"`
	ValorBrutoAtual   wireValue `json:"valor_bruto_atual"`
	Impostos          wireValue `json:"impostos"`
	AliqAtual         wireValue `json:"aliq_atual"`
	ValorLiquidoAtual wireValue `json:"valor_liquido_atual"`
	PartPrflo         wireValue `json:"part_prflo"`
	RentMes           wireValue `json:"rent_mes"`
	RentInicio        wireValue `json:"rent_inicio"`
}

// Extract sends the reconstructed page text to the model and converts the
// returned array into raw records. Zero lines yield zero records without a
// model call.
func (e *Extractor) Extract(ctx context.Context, lines []layout.Line) ([]*record.Raw, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	prompt := e.buildPrompt(pageText(lines))

	e.logger.Info("extracting positions with the model", slog.Int("lines", len(lines)))

	raw, err := e.provider.Generate(ctx, extractorSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("semantic extraction: %w", err)
	}

	var wire []wireRecord
	if err := DecodeLenient(raw, &wire); err != nil {
		return nil, fmt.Errorf("semantic extraction: %w", err)
	}

	records := make([]*record.Raw, 0, len(wire))
	for _, w := range wire {
		records = append(records, e.toRaw(w))
	}

	if e.expected > 0 && len(records) != e.expected {
		e.logger.Warn("model returned unexpected record count",
			slog.Int("got", len(records)),
			slog.Int("want", e.expected))
	}

	return records, nil
}

// pageText rebuilds per-page plain text with page banners so the model can
// tell pages apart.
func pageText(lines []layout.Line) string {
	var b strings.Builder
	page := -1
	for _, line := range lines {
		if line.Page != page {
			page = line.Page
			fmt.Fprintf(&b, "\n=== PÁGINA %d ===\n", page)
		}
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (e *Extractor) buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString(`Analise o texto do relatório de investimentos abaixo e extraia TODOS os dados de cada investimento da tabela "Posição Detalhada dos Investimentos".

ESTRUTURA DA TABELA:

Para RENDA FIXA (PÓS-FIXADO, PRÉ-FIXADO, JURO REAL - INFLAÇÃO):
1. Data de Emissão (dd/mm/aa)
2. Data de Aplicação (dd/mm/aa)
3. Data de Vencimento (dd/mm/aa)
4. Aplicação Inicial R$ (formato: 100.000,00)
5. TX % Emis. (indexador: "CDI -", "PRE", "IPCA", ou vazio)
6. TX % a.a. (número ou vazio)
7. Quantidade (formato: 100,00)
8. Preço Atual (formato: 1.020,84)
9. Valor Bruto Atual (formato: 102.084,44)
10. Impostos (formato: 0,00)
11. Aliq. Atual (formato: 0,00)
12. Valor Líquido Atual (formato: 102.084,44)
13. Part % Prflo (formato: 3,04)
14. Rentabilidade Mês % (formato: 1,45)
15. Rentabilidade Início % (formato: 20,89)

Para MULTIMERCADOS (estrutura DIFERENTE, menos colunas):
1. Data de Emissão (dd/mm/aa), APENAS UMA DATA
2. Aplicação Inicial R$
3. Quantidade
4. Preço Atual
5. Valor Bruto Atual
6. Impostos
7. Aliq. Atual
8. Valor Líquido Atual
9. Part % Prflo
10. Rentabilidade Mês %
11. Rentabilidade Início %

ATENÇÃO: MULTIMERCADOS NÃO TEM Data de Aplicação, Data de Vencimento, TX % Emis., TX % a.a.!

IMPORTANTE:
- NOME pode estar em linha SEPARADA antes ou depois dos dados
- Alguns nomes são multi-linha (ex: "CRI - BROOKFIELD" + "GLP")
- Alguns investimentos NÃO têm nome específico (retorne null)
- Indexador pode ser: CDI, PRE, IPCA, IPCA M D, ou vazio
- Valores em formato brasileiro: ponto como separador de milhares e vírgula como decimal
- Datas em formato dd/mm/aa

TEXTO DO PDF:
`)
	b.WriteString(text)
	b.WriteString(`

Retorne um JSON array com um objeto por investimento, NA ORDEM em que aparecem no PDF:

[
  {
    "tipo": "PÓS-FIXADO",
    "nome": "CRI - BROOKFIELD, VIA PORTFÓLIO GLP",
    "data_emissao": "02/02/24",
    "data_aplicacao": "02/02/24",
    "data_vencimento": "22/01/29",
    "aplicacao_inicial": "100.000,00",
    "indexador": "CDI",
    "tx_emis": "1,50",
    "tx_aa": null,
    "quantidade": "100,00",
    "preco_atual": "1.020,84",
    "valor_bruto_atual": "102.084,44",
    "impostos": "0,00",
    "aliq_atual": "0,00",
    "valor_liquido_atual": "102.084,44",
    "part_prflo": "3,04",
    "rent_mes": "1,45",
    "rent_inicio": "20,89"
  }
]

REGRAS:
- "tipo" é a seção do investimento: PÓS-FIXADO, PRÉ-FIXADO, JURO REAL - INFLAÇÃO ou MULTIMERCADOS
- Use null para valores vazios/ausentes
- Mantenha o formato brasileiro nos valores (vírgula decimal)
- Retorne APENAS o JSON, sem texto adicional`)

	if e.expected > 0 {
		fmt.Fprintf(&b, "\n- O relatório contém EXATAMENTE %d investimentos", e.expected)
	}

	return b.String()
}

func (e *Extractor) toRaw(w wireRecord) *record.Raw {
	raw := &record.Raw{
		Section:          parseSection(string(w.Tipo)),
		Name:             w.Nome.ptr(),
		IssueDate:        w.DataEmissao.ptr(),
		ApplicationDate:  w.DataAplicacao.ptr(),
		MaturityDate:     w.DataVencimento.ptr(),
		InitialAmount:    w.AplicacaoInicial.ptr(),
		Indexer:          parseIndexer(string(w.Indexador)),
		IssueRate:        w.TxEmis.ptr(),
		AnnualRate:       w.TxAA.ptr(),
		Quantity:         w.Quantidade.ptr(),
		UnitPrice:        w.PrecoAtual.ptr(),
		GrossValue:       w.ValorBrutoAtual.ptr(),
		Taxes:            w.Impostos.ptr(),
		TaxRate:          w.AliqAtual.ptr(),
		NetValue:         w.ValorLiquidoAtual.ptr(),
		PortfolioShare:   w.PartPrflo.ptr(),
		MonthReturn:      w.RentMes.ptr(),
		SinceStartReturn: w.RentInicio.ptr(),
	}

	if raw.Section == section.Unknown && w.Tipo != "" {
		e.logger.Warn("model returned unknown section", slog.String("tipo", string(w.Tipo)))
	}

	return raw
}

// parseSection matches the model's "tipo" against the known section headers.
func parseSection(tipo string) section.Section {
	upper := strings.ToUpper(strings.TrimSpace(tipo))
	for _, s := range section.All() {
		if upper == string(s) {
			return s
		}
	}
	return section.Unknown
}

// parseIndexer maps the loose indexer spellings the model emits onto the
// statement codes. Unrecognized non-empty values pass through untouched.
func parseIndexer(value string) *string {
	normalized := strings.Join(strings.Fields(strings.ToUpper(value)), " ")
	switch {
	case normalized == "":
		return nil
	case strings.HasPrefix(normalized, "IPCA M D"), normalized == "IPCA MD", normalized == record.IndexerIPCAMD:
		return strPtr(record.IndexerIPCAMD)
	case strings.HasPrefix(normalized, "IPCA"):
		return strPtr(record.IndexerIPCA)
	case strings.HasPrefix(normalized, "CDI"):
		return strPtr(record.IndexerCDI)
	case strings.HasPrefix(normalized, "PRE"), strings.HasPrefix(normalized, "PRÉ"):
		return strPtr(record.IndexerPRE)
	}
	return strPtr(normalized)
}

func strPtr(s string) *string { return &s }
