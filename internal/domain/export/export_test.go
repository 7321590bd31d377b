package export

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/enrich"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/normalize"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

func fp(v float64) *float64 { return &v }
func sp(s string) *string   { return &s }

func newWriter() *Writer {
	return NewWriter(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func sampleSnapshot() *portfolio.Snapshot {
	title := &portfolio.Position{
		Record: normalize.Record{
			Section:          section.PosFixado,
			Name:             sp("CRI - BROOKFIELD GLP"),
			IssueDate:        sp("2024-02-02"),
			ApplicationDate:  sp("2024-02-02"),
			MaturityDate:     sp("2029-01-22"),
			InitialAmount:    fp(100000.00),
			Indexer:          sp("CDI"),
			IssueRate:        fp(1.50),
			AnnualRate:       fp(103.50),
			Quantity:         fp(100.00),
			UnitPrice:        fp(1020.84),
			GrossValue:       fp(102084.44),
			Taxes:            fp(0),
			TaxRate:          fp(0),
			NetValue:         fp(102084.44),
			PortfolioShare:   fp(3.04),
			MonthReturn:      fp(1.45),
			SinceStartReturn: fp(20.89),
			Complete:         true,
			Reconciled:       true,
		},
		Classification: classify.Classification{
			AssetType: classify.AssetTypeRendaFixa,
			Category:  classify.CategoryCRI,
		},
	}

	prefixado := &portfolio.Position{
		Record: normalize.Record{
			Section:         section.PreFixado,
			Name:            sp("LCA RABOBANK"),
			ApplicationDate: sp("2022-05-02"),
			MaturityDate:    sp("2024-05-02"),
			InitialAmount:   fp(50000.00),
			Indexer:         sp("PRE"),
			IssueRate:       fp(13.90),
			GrossValue:      fp(50000.00),
			NetValue:        fp(50000.00),
			Complete:        true,
			Reconciled:      true,
		},
		Classification: classify.Classification{
			AssetType: classify.AssetTypeRendaFixa,
			Category:  classify.CategoryLCA,
		},
	}

	fund := &portfolio.Position{
		Record: normalize.Record{
			Section:          section.Multi,
			Name:             sp("KAPITALO K10 FIC MM"),
			ApplicationDate:  sp("2021-08-12"),
			InitialAmount:    fp(350000.00),
			Quantity:         fp(1387.17),
			UnitPrice:        fp(252.36),
			GrossValue:       fp(350093.80),
			Taxes:            fp(818.60),
			TaxRate:          fp(15.00),
			NetValue:         fp(349275.20),
			PortfolioShare:   fp(10.97),
			MonthReturn:      fp(0.43),
			SinceStartReturn: fp(12.78),
			Complete:         true,
			Reconciled:       true,
		},
		Classification: classify.Classification{
			AssetType: classify.AssetTypeFundo,
			Category:  classify.CategoryFundoMultimercado,
		},
	}

	incomplete := &portfolio.Position{
		Record: normalize.Record{
			Section:    section.PreFixado,
			Name:       sp("FRAGMENTO SEM VALORES"),
			Complete:   false,
			Reconciled: true,
		},
	}

	meta := portfolio.Metadata{
		ExtractedAt: time.Date(2025, 4, 17, 9, 30, 0, 0, time.UTC),
		Institution: "Bradesco",
		Source:      "rules",
	}
	return portfolio.Build(meta, []*portfolio.Position{title, prefixado, fund, incomplete})
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), utf8BOM), "file should start with a BOM")

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteFlatCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "investimentos.csv")
	require.NoError(t, newWriter().WriteFlatCSV(sampleSnapshot(), path))

	rows := readCSV(t, path)
	require.Len(t, rows, 5)

	header := strings.Join(rows[0], ",")
	assert.Equal(t, "Tipo,Nome,Data_Emissao,Data_Aplicacao,Data_Vencimento,Aplicacao_Inicial_R$,Indexador,TX_Emis,TX_aa,Quantidade,Preco_Atual,Valor_Bruto_Atual,Impostos,Aliq_Atual,Valor_Liquido_Atual,Part_Prflo_%,Rent_Mes_%,Rent_Inicio_%,Tipo_Ativo,Categoria", header)

	title := rows[1]
	assert.Equal(t, "PÓS-FIXADO", title[0])
	assert.Equal(t, "CRI - BROOKFIELD GLP", title[1])
	assert.Equal(t, "02/02/24", title[2])
	assert.Equal(t, "22/01/29", title[4])
	assert.Equal(t, "100.000,00", title[5])
	assert.Equal(t, "CDI", title[6])
	assert.Equal(t, "1,50", title[7])
	assert.Equal(t, "103,50", title[8])
	assert.Equal(t, "102.084,44", title[11])
	assert.Equal(t, "renda_fixa", title[18])
	assert.Equal(t, "CRI", title[19])

	fund := rows[3]
	assert.Equal(t, "MULTIMERCADOS", fund[0])
	assert.Equal(t, "", fund[2], "funds have no issue date")
	assert.Equal(t, "12/08/21", fund[3])
	assert.Equal(t, "", fund[6], "funds have no indexer")
	assert.Equal(t, "350.093,80", fund[11])

	last := rows[4]
	assert.Equal(t, "FRAGMENTO SEM VALORES", last[1], "incomplete rows come last")
	assert.Equal(t, "", last[11])
}

func TestWriteClassifiedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classificados.csv")
	require.NoError(t, newWriter().WriteClassifiedCSV(sampleSnapshot(), path))

	rows := readCSV(t, path)
	require.Len(t, rows, 5)

	assert.Equal(t, []string{"Banco", "Ativo", "Preço", "Valor", "Tipo de Ativo", "Categoria", "Indexador", "Taxa %", "Vencimento"}, rows[0])

	title := rows[1]
	assert.Equal(t, "Bradesco", title[0])
	assert.Equal(t, "CRI - BROOKFIELD GLP", title[1])
	assert.Equal(t, "1020.84", title[2])
	assert.Equal(t, "102.084,44", title[3])
	assert.Equal(t, "Renda Fixa", title[4], "codes render as display labels")
	assert.Equal(t, "CRI", title[5])
	assert.Equal(t, "CDI", title[6])
	assert.Equal(t, "103.5", title[7], "annual rate wins when present")
	assert.Equal(t, "2029-01-22", title[8])

	prefixado := rows[2]
	assert.Equal(t, "13.9", prefixado[7], "issue rate stands in when the annual rate is missing")

	fund := rows[3]
	assert.Equal(t, "Fundo de Investimento", fund[4])

	incomplete := rows[4]
	assert.Equal(t, "FRAGMENTO SEM VALORES", incomplete[1])
	assert.Equal(t, "N/A", incomplete[4])
	assert.Equal(t, "N/A", incomplete[5])
}

func TestClassifiedNameFallback(t *testing.T) {
	nameless := &portfolio.Position{
		Record: normalize.Record{
			Section:    section.PreFixado,
			GrossValue: fp(1000.00),
			Complete:   true,
			Reconciled: true,
		},
	}
	snap := portfolio.Build(portfolio.Metadata{Institution: "Bradesco"}, []*portfolio.Position{nameless})

	path := filepath.Join(t.TempDir(), "classificados.csv")
	require.NoError(t, newWriter().WriteClassifiedCSV(snap, path))

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "Sem nome", rows[1][1])
}

func TestWriteEnrichedCSV(t *testing.T) {
	snap := sampleSnapshot()
	issuers := map[string]*enrich.Issuer{
		"CRI - BROOKFIELD GLP": {
			CNPJ:      "07.114.232/0001-19",
			Company:   "BROOKFIELD INCORPORACOES BRASIL S.A.",
			LegalName: "BROOKFIELD INCORPORACOES BRASIL S.A.",
			Status:    "ATIVA",
			Source:    enrich.SourceReceitaWS,
		},
		"KAPITALO K10 FIC MM": {
			CNPJ:    "28.303.588/0001-52",
			Company: "KAPITALO INVESTIMENTOS LTDA",
			Source:  enrich.SourceBrasilAPI,
		},
	}

	path := filepath.Join(t.TempDir(), "classificados.csv")
	require.NoError(t, newWriter().WriteEnrichedCSV(snap, issuers, path))

	rows := readCSV(t, path)
	require.Len(t, rows, 5)

	assert.Equal(t, []string{
		"Banco", "Ativo", "CNPJ", "Razao_Social", "Situacao_Cadastral",
		"Preço", "Valor", "Tipo de Ativo", "Categoria", "Indexador", "Taxa %", "Vencimento",
	}, rows[0])

	title := rows[1]
	assert.Equal(t, "CRI - BROOKFIELD GLP", title[1])
	assert.Equal(t, "07.114.232/0001-19", title[2])
	assert.Equal(t, "BROOKFIELD INCORPORACOES BRASIL S.A.", title[3])
	assert.Equal(t, "ATIVA", title[4])
	assert.Equal(t, "102.084,44", title[6])

	// No issuer resolved for the LCA.
	lca := rows[2]
	assert.Equal(t, "N/A", lca[2])
	assert.Equal(t, "", lca[3])
	assert.Equal(t, "", lca[4])

	// The fund came from a source without a legal name.
	fund := rows[3]
	assert.Equal(t, "28.303.588/0001-52", fund[2])
	assert.Equal(t, "KAPITALO INVESTIMENTOS LTDA", fund[3])

	assert.Equal(t, "N/A", rows[4][2])
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "investimentos.json")
	require.NoError(t, newWriter().WriteJSON(sampleSnapshot(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "Bradesco", meta["banco"])
	assert.Equal(t, "rules", meta["fonte"])

	rendaFixa := doc["renda_fixa"].(map[string]any)
	assert.Len(t, rendaFixa["pos_fixado"], 1)
	assert.Len(t, rendaFixa["pre_fixado"], 1)
	assert.Empty(t, rendaFixa["juro_real_inflacao"])

	posSummary := rendaFixa["pos_fixado_summary"].(map[string]any)
	assert.Equal(t, float64(1), posSummary["quantidade"])
	assert.Equal(t, 102084.44, posSummary["total_bruto"])

	juroSummary := rendaFixa["juro_real_inflacao_summary"].(map[string]any)
	assert.Equal(t, float64(0), juroSummary["quantidade"])

	alternativos := doc["alternativos"].(map[string]any)
	assert.Len(t, alternativos["multimercados"], 1)

	totais := doc["totais"].(map[string]any)
	assert.Equal(t, float64(3), totais["quantidade_investimentos"])
	assert.Equal(t, 502178.24, totais["valor_bruto_total"])

	incompletos := doc["incompletos"].([]any)
	require.Len(t, incompletos, 1)
	assert.Equal(t, "pre_fixado", incompletos[0].(map[string]any)["secao"])

	title := rendaFixa["pos_fixado"].([]any)[0].(map[string]any)
	indexador := title["indexador"].(map[string]any)
	assert.Equal(t, "CDI", indexador["tipo"])
	assert.Equal(t, 103.5, indexador["taxa_aa_pct"])
	classificacao := title["classificacao"].(map[string]any)
	assert.Equal(t, "CRI", classificacao["categoria"])

	fund := alternativos["multimercados"].([]any)[0].(map[string]any)
	assert.Nil(t, fund["indexador"], "funds persist a null indexer block")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestMarshalSnapshotMatchesFile(t *testing.T) {
	snap := sampleSnapshot()

	path := filepath.Join(t.TempDir(), "investimentos.json")
	require.NoError(t, newWriter().WriteJSON(snap, path))
	fromFile, err := os.ReadFile(path)
	require.NoError(t, err)

	marshaled, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, string(fromFile), string(marshaled))
}

func TestJSONRoundTrip(t *testing.T) {
	original := sampleSnapshot()
	path := filepath.Join(t.TempDir(), "investimentos.json")
	require.NoError(t, newWriter().WriteJSON(original, path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, original.Metadata.Institution, loaded.Metadata.Institution)
	assert.Equal(t, original.Metadata.Source, loaded.Metadata.Source)
	assert.True(t, original.Metadata.ExtractedAt.Equal(loaded.Metadata.ExtractedAt))

	assert.Equal(t, original.Len(), loaded.Len())
	assert.Equal(t, original.Totals.Count, loaded.Totals.Count)
	assert.Equal(t, original.Totals.Gross.Cents(), loaded.Totals.Gross.Cents())
	assert.Equal(t, original.Totals.Net.Cents(), loaded.Totals.Net.Cents())
	assert.Equal(t, original.Totals.Taxes.Cents(), loaded.Totals.Taxes.Cents())

	originalComplete := original.Complete()
	loadedComplete := loaded.Complete()
	require.Len(t, loadedComplete, len(originalComplete))
	for i := range originalComplete {
		assert.Equal(t, deref(originalComplete[i].Name), deref(loadedComplete[i].Name))
		assert.Equal(t, originalComplete[i].Section, loadedComplete[i].Section)
		assert.Equal(t, originalComplete[i].Classification.Category, loadedComplete[i].Classification.Category)
		assert.True(t, loadedComplete[i].Complete)
		assert.True(t, loadedComplete[i].Reconciled)
	}

	require.Len(t, loaded.Incomplete, 1)
	assert.Equal(t, section.PreFixado, loaded.Incomplete[0].Section)
	assert.Equal(t, "FRAGMENTO SEM VALORES", deref(loaded.Incomplete[0].Name))
}

func TestEmptySnapshotJSON(t *testing.T) {
	snap := portfolio.Build(portfolio.Metadata{Institution: "Bradesco"}, nil)
	path := filepath.Join(t.TempDir(), "vazio.json")
	require.NoError(t, newWriter().WriteJSON(snap, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"pos_fixado": []`)
	assert.Contains(t, text, `"multimercados": []`)
	assert.NotContains(t, text, "incompletos")
	assert.NotContains(t, text, "null,")
}

func TestWriteFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	path := filepath.Join(blocker, "out.json")
	err := newWriter().WriteJSON(sampleSnapshot(), path)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadSnapshotErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nao-existe.json"))
		require.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrompido.json")
		require.NoError(t, os.WriteFile(path, []byte("{nem json"), 0o644))
		_, err := LoadSnapshot(path)
		require.Error(t, err)
	})
}
