package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/normalize"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
	"github.com/widia-io/investiment-scrapper-v2/pkg/money"
)

// document is the persisted hierarchical form of a snapshot.
type document struct {
	Metadata     docMetadata   `json:"metadata"`
	RendaFixa    fixedIncome   `json:"renda_fixa"`
	Alternativos alternatives  `json:"alternativos"`
	Incompletos  []docPosition `json:"incompletos,omitempty"`
	Totais       docTotals     `json:"totais"`
}

type docMetadata struct {
	DataExtracao time.Time `json:"data_extracao"`
	Banco        string    `json:"banco"`
	Fonte        string    `json:"fonte"`
}

type fixedIncome struct {
	PosFixado        []docPosition `json:"pos_fixado"`
	PosFixadoSummary docSummary    `json:"pos_fixado_summary"`
	PreFixado        []docPosition `json:"pre_fixado"`
	PreFixadoSummary docSummary    `json:"pre_fixado_summary"`
	JuroReal         []docPosition `json:"juro_real_inflacao"`
	JuroRealSummary  docSummary    `json:"juro_real_inflacao_summary"`
}

type alternatives struct {
	Multimercados        []docPosition `json:"multimercados"`
	MultimercadosSummary docSummary    `json:"multimercados_summary"`
}

type docSummary struct {
	Quantidade    int     `json:"quantidade"`
	TotalBruto    float64 `json:"total_bruto"`
	TotalLiquido  float64 `json:"total_liquido"`
	TotalImpostos float64 `json:"total_impostos"`
}

type docTotals struct {
	QuantidadeInvestimentos int     `json:"quantidade_investimentos"`
	ValorBrutoTotal         float64 `json:"valor_bruto_total"`
	ValorLiquidoTotal       float64 `json:"valor_liquido_total"`
}

type docPosition struct {
	Nome          *string      `json:"nome"`
	Secao         string       `json:"secao,omitempty"`
	Datas         docDates     `json:"datas"`
	Valores       docValues    `json:"valores"`
	Rentabilidade docReturns   `json:"rentabilidade"`
	Indexador     *docIndexer  `json:"indexador"`
	Classificacao *docTaxonomy `json:"classificacao,omitempty"`
}

type docDates struct {
	Emissao    *string `json:"emissao"`
	Aplicacao  *string `json:"aplicacao"`
	Vencimento *string `json:"vencimento"`
}

type docValues struct {
	AplicacaoInicial  *float64 `json:"aplicacao_inicial"`
	Quantidade        *float64 `json:"quantidade"`
	PrecoAtual        *float64 `json:"preco_atual"`
	ValorBrutoAtual   *float64 `json:"valor_bruto_atual"`
	Impostos          *float64 `json:"impostos"`
	ValorLiquidoAtual *float64 `json:"valor_liquido_atual"`
}

type docReturns struct {
	AliquotaAtualPct         *float64 `json:"aliquota_atual_pct"`
	ParticipacaoPortfolioPct *float64 `json:"participacao_portfolio_pct"`
	MesPct                   *float64 `json:"mes_pct"`
	DesdeInicioPct           *float64 `json:"desde_inicio_pct"`
}

type docIndexer struct {
	Tipo           string   `json:"tipo"`
	TaxaEmissaoPct *float64 `json:"taxa_emissao_pct"`
	TaxaAaPct      *float64 `json:"taxa_aa_pct"`
}

type docTaxonomy struct {
	TipoAtivo string `json:"tipo_ativo"`
	Categoria string `json:"categoria"`
}

// WriteJSON writes the hierarchical document, the snapshot's persisted form.
func (w *Writer) WriteJSON(snap *portfolio.Snapshot, path string) error {
	doc := toDocument(snap)

	err := writeAtomic(path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)
	})
	if err != nil {
		return fmt.Errorf("write json: %w", err)
	}

	w.logger.Info("json written", slog.String("path", path), slog.Int("positions", snap.Len()))
	return nil
}

// MarshalSnapshot renders the hierarchical document without writing it
// anywhere. Run history stores these bytes verbatim.
func MarshalSnapshot(snap *portfolio.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(toDocument(snap)); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadSnapshot reads a document written by WriteJSON back into a snapshot,
// recomputing totals, completeness and reconciliation from the stored values.
func LoadSnapshot(path string) (*portfolio.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	meta := portfolio.Metadata{
		ExtractedAt: doc.Metadata.DataExtracao,
		Institution: doc.Metadata.Banco,
		Source:      doc.Metadata.Fonte,
	}
	return portfolio.Build(meta, doc.positions()), nil
}

func toDocument(snap *portfolio.Snapshot) document {
	doc := document{
		Metadata: docMetadata{
			DataExtracao: snap.Metadata.ExtractedAt,
			Banco:        snap.Metadata.Institution,
			Fonte:        snap.Metadata.Source,
		},
		RendaFixa: fixedIncome{
			PosFixado: []docPosition{},
			PreFixado: []docPosition{},
			JuroReal:  []docPosition{},
		},
		Alternativos: alternatives{
			Multimercados: []docPosition{},
		},
		Totais: docTotals{
			QuantidadeInvestimentos: snap.Totals.Count,
			ValorBrutoTotal:         snap.Totals.Gross.Float64(),
			ValorLiquidoTotal:       snap.Totals.Net.Float64(),
		},
	}

	for _, g := range snap.Groups {
		for _, b := range g.Buckets {
			entries := make([]docPosition, 0, len(b.Positions))
			for _, p := range b.Positions {
				entries = append(entries, toDocPosition(p, false))
			}
			summary := docSummary{
				Quantidade:    b.Totals.Count,
				TotalBruto:    b.Totals.Gross.Float64(),
				TotalLiquido:  b.Totals.Net.Float64(),
				TotalImpostos: b.Totals.Taxes.Float64(),
			}

			switch b.Key {
			case section.PosFixado.Key():
				doc.RendaFixa.PosFixado = entries
				doc.RendaFixa.PosFixadoSummary = summary
			case section.PreFixado.Key():
				doc.RendaFixa.PreFixado = entries
				doc.RendaFixa.PreFixadoSummary = summary
			case section.JuroReal.Key():
				doc.RendaFixa.JuroReal = entries
				doc.RendaFixa.JuroRealSummary = summary
			case section.Multi.Key():
				doc.Alternativos.Multimercados = entries
				doc.Alternativos.MultimercadosSummary = summary
			}
		}
	}

	for _, p := range snap.Incomplete {
		doc.Incompletos = append(doc.Incompletos, toDocPosition(p, true))
	}

	return doc
}

func toDocPosition(p *portfolio.Position, includeSection bool) docPosition {
	d := docPosition{
		Nome: p.Name,
		Datas: docDates{
			Emissao:    p.IssueDate,
			Aplicacao:  p.ApplicationDate,
			Vencimento: p.MaturityDate,
		},
		Valores: docValues{
			AplicacaoInicial:  p.InitialAmount,
			Quantidade:        p.Quantity,
			PrecoAtual:        p.UnitPrice,
			ValorBrutoAtual:   p.GrossValue,
			Impostos:          p.Taxes,
			ValorLiquidoAtual: p.NetValue,
		},
		Rentabilidade: docReturns{
			AliquotaAtualPct:         p.TaxRate,
			ParticipacaoPortfolioPct: p.PortfolioShare,
			MesPct:                   p.MonthReturn,
			DesdeInicioPct:           p.SinceStartReturn,
		},
	}

	if p.Indexer != nil {
		d.Indexador = &docIndexer{
			Tipo:           *p.Indexer,
			TaxaEmissaoPct: p.IssueRate,
			TaxaAaPct:      p.AnnualRate,
		}
	}
	if !p.Classification.IsZero() {
		d.Classificacao = &docTaxonomy{
			TipoAtivo: p.Classification.AssetType,
			Categoria: p.Classification.Category,
		}
	}
	if includeSection {
		d.Secao = p.Section.Key()
	}

	return d
}

func (d document) positions() []*portfolio.Position {
	var out []*portfolio.Position

	add := func(sec section.Section, entries []docPosition) {
		for i := range entries {
			out = append(out, entries[i].toPosition(sec))
		}
	}
	add(section.PosFixado, d.RendaFixa.PosFixado)
	add(section.PreFixado, d.RendaFixa.PreFixado)
	add(section.JuroReal, d.RendaFixa.JuroReal)
	add(section.Multi, d.Alternativos.Multimercados)

	for i := range d.Incompletos {
		entry := d.Incompletos[i]
		out = append(out, entry.toPosition(section.FromKey(entry.Secao)))
	}

	return out
}

func (d docPosition) toPosition(sec section.Section) *portfolio.Position {
	p := &portfolio.Position{
		Record: normalize.Record{
			Section:          sec,
			Name:             d.Nome,
			IssueDate:        d.Datas.Emissao,
			ApplicationDate:  d.Datas.Aplicacao,
			MaturityDate:     d.Datas.Vencimento,
			InitialAmount:    d.Valores.AplicacaoInicial,
			Quantity:         d.Valores.Quantidade,
			UnitPrice:        d.Valores.PrecoAtual,
			GrossValue:       d.Valores.ValorBrutoAtual,
			Taxes:            d.Valores.Impostos,
			NetValue:         d.Valores.ValorLiquidoAtual,
			TaxRate:          d.Rentabilidade.AliquotaAtualPct,
			PortfolioShare:   d.Rentabilidade.ParticipacaoPortfolioPct,
			MonthReturn:      d.Rentabilidade.MesPct,
			SinceStartReturn: d.Rentabilidade.DesdeInicioPct,
		},
	}

	if d.Indexador != nil {
		tipo := d.Indexador.Tipo
		p.Indexer = &tipo
		p.IssueRate = d.Indexador.TaxaEmissaoPct
		p.AnnualRate = d.Indexador.TaxaAaPct
	}
	if d.Classificacao != nil {
		p.Classification = classify.Classification{
			AssetType: d.Classificacao.TipoAtivo,
			Category:  d.Classificacao.Categoria,
		}
	}

	p.Complete = p.GrossValue != nil && p.Section != section.Unknown
	p.Reconciled = reconciled(&p.Record)

	return p
}

func reconciled(rec *normalize.Record) bool {
	if rec.GrossValue == nil || rec.NetValue == nil {
		return true
	}
	taxes := money.Zero()
	if rec.Taxes != nil {
		taxes = money.FromFloat(*rec.Taxes)
	}
	gross := money.FromFloat(*rec.GrossValue)
	net := money.FromFloat(*rec.NetValue)
	return gross.Sub(taxes).WithinCents(net, 1)
}
