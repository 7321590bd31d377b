package export

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gocarina/gocsv"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
)

// flatRow is the spreadsheet shape of one position, in the statement's own
// formats: dd/mm/aa dates, comma decimals.
type flatRow struct {
	Tipo             string `csv:"Tipo"`
	Nome             string `csv:"Nome"`
	DataEmissao      string `csv:"Data_Emissao"`
	DataAplicacao    string `csv:"Data_Aplicacao"`
	DataVencimento   string `csv:"Data_Vencimento"`
	AplicacaoInicial string `csv:"Aplicacao_Inicial_R$"`
	Indexador        string `csv:"Indexador"`
	TxEmis           string `csv:"TX_Emis"`
	TxAa             string `csv:"TX_aa"`
	Quantidade       string `csv:"Quantidade"`
	PrecoAtual       string `csv:"Preco_Atual"`
	ValorBruto       string `csv:"Valor_Bruto_Atual"`
	Impostos         string `csv:"Impostos"`
	AliqAtual        string `csv:"Aliq_Atual"`
	ValorLiquido     string `csv:"Valor_Liquido_Atual"`
	PartPrflo        string `csv:"Part_Prflo_%"`
	RentMes          string `csv:"Rent_Mes_%"`
	RentInicio       string `csv:"Rent_Inicio_%"`
	TipoAtivo        string `csv:"Tipo_Ativo"`
	Categoria        string `csv:"Categoria"`
}

// classifiedRow is the condensed per-asset report consumed by spreadsheets
// downstream.
type classifiedRow struct {
	Banco      string `csv:"Banco"`
	Ativo      string `csv:"Ativo"`
	Preco      string `csv:"Preço"`
	Valor      string `csv:"Valor"`
	TipoAtivo  string `csv:"Tipo de Ativo"`
	Categoria  string `csv:"Categoria"`
	Indexador  string `csv:"Indexador"`
	Taxa       string `csv:"Taxa %"`
	Vencimento string `csv:"Vencimento"`
}

// WriteFlatCSV writes every position, incomplete ones last, as one row each.
func (w *Writer) WriteFlatCSV(snap *portfolio.Snapshot, path string) error {
	rows := make([]flatRow, 0, snap.Len())
	for _, p := range snap.All() {
		rows = append(rows, flatten(p))
	}

	err := writeAtomic(path, func(out io.Writer) error {
		if _, err := io.WriteString(out, utf8BOM); err != nil {
			return err
		}
		return gocsv.Marshal(&rows, out)
	})
	if err != nil {
		return fmt.Errorf("write flat csv: %w", err)
	}

	w.logger.Info("flat csv written", slog.String("path", path), slog.Int("rows", len(rows)))
	return nil
}

// WriteClassifiedCSV writes the condensed classified report. Unclassified
// positions carry N/A so the sheet never has silent blanks.
func (w *Writer) WriteClassifiedCSV(snap *portfolio.Snapshot, path string) error {
	rows := make([]classifiedRow, 0, snap.Len())
	for _, p := range snap.All() {
		rows = append(rows, classifiedFlatten(snap.Metadata.Institution, p))
	}

	err := writeAtomic(path, func(out io.Writer) error {
		if _, err := io.WriteString(out, utf8BOM); err != nil {
			return err
		}
		return gocsv.Marshal(&rows, out)
	})
	if err != nil {
		return fmt.Errorf("write classified csv: %w", err)
	}

	w.logger.Info("classified csv written", slog.String("path", path), slog.Int("rows", len(rows)))
	return nil
}

func flatten(p *portfolio.Position) flatRow {
	return flatRow{
		Tipo:             string(p.Section),
		Nome:             deref(p.Name),
		DataEmissao:      statementDate(p.IssueDate),
		DataAplicacao:    statementDate(p.ApplicationDate),
		DataVencimento:   statementDate(p.MaturityDate),
		AplicacaoInicial: number(p.InitialAmount),
		Indexador:        deref(p.Indexer),
		TxEmis:           number(p.IssueRate),
		TxAa:             number(p.AnnualRate),
		Quantidade:       number(p.Quantity),
		PrecoAtual:       number(p.UnitPrice),
		ValorBruto:       number(p.GrossValue),
		Impostos:         number(p.Taxes),
		AliqAtual:        number(p.TaxRate),
		ValorLiquido:     number(p.NetValue),
		PartPrflo:        number(p.PortfolioShare),
		RentMes:          number(p.MonthReturn),
		RentInicio:       number(p.SinceStartReturn),
		TipoAtivo:        p.Classification.AssetType,
		Categoria:        p.Classification.Category,
	}
}

func classifiedFlatten(institution string, p *portfolio.Position) classifiedRow {
	name := deref(p.Name)
	if name == "" {
		name = "Sem nome"
	}

	category := p.Classification.Category
	if category == "" {
		category = "N/A"
	}

	// The annual rate is the effective figure; the issue rate only stands in
	// when the statement omits it.
	rate := p.AnnualRate
	if rate == nil {
		rate = p.IssueRate
	}

	return classifiedRow{
		Banco:      institution,
		Ativo:      name,
		Preco:      plainNumber(p.UnitPrice),
		Valor:      number(p.GrossValue),
		TipoAtivo:  assetTypeLabel(p.Classification.AssetType),
		Categoria:  category,
		Indexador:  deref(p.Indexer),
		Taxa:       plainNumber(rate),
		Vencimento: deref(p.MaturityDate),
	}
}

// assetTypeLabel renders the classification code as the sheet's display
// label. Unknown codes pass through untouched.
func assetTypeLabel(code string) string {
	switch code {
	case classify.AssetTypeRendaFixa:
		return "Renda Fixa"
	case classify.AssetTypeFundo:
		return "Fundo de Investimento"
	case "":
		return "N/A"
	}
	return code
}
