package semantic

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/record"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/layout"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

type stubProvider struct {
	response string
	err      error
	systems  []string
	prompts  []string
}

func (s *stubProvider) Generate(_ context.Context, systemPrompt, prompt string) (string, error) {
	s.systems = append(s.systems, systemPrompt)
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func statementLines() []layout.Line {
	return []layout.Line{
		{Page: 6, Text: "PÓS-FIXADO"},
		{Page: 6, Text: "CRI - BROOKFIELD"},
		{Page: 6, Text: "02/02/24 02/02/24 22/01/29 100.000,00 CDI - 103,50 100,00 1.020,84 102.084,44 0,00 0,00 102.084,44 3,04 1,45 20,89"},
		{Page: 7, Text: "MULTIMERCADOS"},
		{Page: 7, Text: "KAPITALO K10 FIC MM 12/08/21 350.000,00 1.387,17 252,36 350.093,80 0,00 15,00 297.579,73 10,97 0,43 12,78"},
	}
}

func TestExtract(t *testing.T) {
	t.Run("converts the returned array into raw records", func(t *testing.T) {
		provider := &stubProvider{response: `[
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
			},
			{
				"tipo": "MULTIMERCADOS",
				"nome": "KAPITALO K10 FIC MM",
				"data_emissao": "12/08/21",
				"aplicacao_inicial": "350.000,00",
				"indexador": null,
				"quantidade": "1.387,17",
				"preco_atual": "252,36",
				"valor_bruto_atual": "350.093,80",
				"impostos": "0,00",
				"aliq_atual": "15,00",
				"valor_liquido_atual": "297.579,73",
				"part_prflo": "10,97",
				"rent_mes": "0,43",
				"rent_inicio": "12,78"
			}
		]`}
		extractor := NewExtractor(provider, 0, testLogger())

		records, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		require.Len(t, records, 2)

		title := records[0]
		assert.Equal(t, section.PosFixado, title.Section)
		assert.Equal(t, "CRI - BROOKFIELD, VIA PORTFÓLIO GLP", record.Deref(title.Name))
		assert.Equal(t, "02/02/24", record.Deref(title.IssueDate))
		assert.Equal(t, "22/01/29", record.Deref(title.MaturityDate))
		assert.Equal(t, record.IndexerCDI, record.Deref(title.Indexer))
		assert.Equal(t, "1,50", record.Deref(title.IssueRate))
		assert.Nil(t, title.AnnualRate)
		assert.Equal(t, "102.084,44", record.Deref(title.GrossValue))

		fund := records[1]
		assert.Equal(t, section.Multi, fund.Section)
		assert.Nil(t, fund.Indexer)
		assert.Nil(t, fund.MaturityDate)
		assert.Equal(t, "15,00", record.Deref(fund.TaxRate))
		assert.Equal(t, "297.579,73", record.Deref(fund.NetValue))
	})

	t.Run("prompt carries page banners and the statement text", func(t *testing.T) {
		provider := &stubProvider{response: `[]`}
		extractor := NewExtractor(provider, 0, testLogger())

		_, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		require.Len(t, provider.prompts, 1)

		prompt := provider.prompts[0]
		assert.Contains(t, prompt, "=== PÁGINA 6 ===")
		assert.Contains(t, prompt, "=== PÁGINA 7 ===")
		assert.Contains(t, prompt, "CRI - BROOKFIELD")
		assert.Contains(t, prompt, "Posição Detalhada dos Investimentos")
		assert.NotContains(t, prompt, "EXATAMENTE")
	})

	t.Run("expected count becomes a validation hint", func(t *testing.T) {
		provider := &stubProvider{response: `[]`}
		extractor := NewExtractor(provider, 27, testLogger())

		_, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		assert.Contains(t, provider.prompts[0], "EXATAMENTE 27 investimentos")
	})

	t.Run("count mismatch is reported but not fatal", func(t *testing.T) {
		provider := &stubProvider{response: `[{"tipo": "PRÉ-FIXADO", "valor_bruto_atual": "52.100,00"}]`}
		extractor := NewExtractor(provider, 27, testLogger())

		records, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("bare numbers become decimal comma strings", func(t *testing.T) {
		provider := &stubProvider{response: `[{"tipo": "MULTIMERCADOS", "valor_bruto_atual": 350093.8, "quantidade": 1387}]`}
		extractor := NewExtractor(provider, 0, testLogger())

		records, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "350093,8", record.Deref(records[0].GrossValue))
		assert.Equal(t, "1387", record.Deref(records[0].Quantity))
	})

	t.Run("fenced response still parses", func(t *testing.T) {
		provider := &stubProvider{response: "```json\n[{\"tipo\": \"PÓS-FIXADO\", \"nome\": \"CDB BANCO XPTO\"}]\n```"}
		extractor := NewExtractor(provider, 0, testLogger())

		records, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "CDB BANCO XPTO", record.Deref(records[0].Name))
	})

	t.Run("unknown tipo lands in the unknown section", func(t *testing.T) {
		provider := &stubProvider{response: `[{"tipo": "RENDA VARIÁVEL", "nome": "PETR4"}]`}
		extractor := NewExtractor(provider, 0, testLogger())

		records, err := extractor.Extract(context.Background(), statementLines())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, section.Unknown, records[0].Section)
	})

	t.Run("provider failure surfaces as an error", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("deadline exceeded")}
		extractor := NewExtractor(provider, 0, testLogger())

		_, err := extractor.Extract(context.Background(), statementLines())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "semantic extraction")
	})

	t.Run("unparseable response surfaces as an error", func(t *testing.T) {
		provider := &stubProvider{response: "Desculpe, não consegui processar o documento."}
		extractor := NewExtractor(provider, 0, testLogger())

		_, err := extractor.Extract(context.Background(), statementLines())
		require.Error(t, err)
	})

	t.Run("no lines means no model call", func(t *testing.T) {
		provider := &stubProvider{response: `[]`}
		extractor := NewExtractor(provider, 0, testLogger())

		records, err := extractor.Extract(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Empty(t, provider.prompts)
	})
}

func TestParseIndexer(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "cdi", value: "CDI", want: record.IndexerCDI},
		{name: "cdi with dash", value: "CDI -", want: record.IndexerCDI},
		{name: "pre", value: "PRE", want: record.IndexerPRE},
		{name: "pre accented", value: "Pré", want: record.IndexerPRE},
		{name: "ipca", value: "IPCA", want: record.IndexerIPCA},
		{name: "ipca monthly distribution", value: "IPCA M D", want: record.IndexerIPCAMD},
		{name: "ipca md echoed back", value: "IPCA_MD", want: record.IndexerIPCAMD},
		{name: "unknown passes through", value: "selic", want: "SELIC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseIndexer(tt.value)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	t.Run("empty is nil", func(t *testing.T) {
		assert.Nil(t, parseIndexer(""))
		assert.Nil(t, parseIndexer("   "))
	})
}
