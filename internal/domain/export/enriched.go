package export

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gocarina/gocsv"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/enrich"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/portfolio"
)

// enrichedRow is the classified report with the issuer columns spliced in
// right after the asset name.
type enrichedRow struct {
	Banco       string `csv:"Banco"`
	Ativo       string `csv:"Ativo"`
	CNPJ        string `csv:"CNPJ"`
	RazaoSocial string `csv:"Razao_Social"`
	Situacao    string `csv:"Situacao_Cadastral"`
	Preco       string `csv:"Preço"`
	Valor       string `csv:"Valor"`
	TipoAtivo   string `csv:"Tipo de Ativo"`
	Categoria   string `csv:"Categoria"`
	Indexador   string `csv:"Indexador"`
	Taxa        string `csv:"Taxa %"`
	Vencimento  string `csv:"Vencimento"`
}

// WriteEnrichedCSV writes the classified report with issuer data attached.
// Positions whose name has no entry in issuers carry CNPJ N/A.
func (w *Writer) WriteEnrichedCSV(snap *portfolio.Snapshot, issuers map[string]*enrich.Issuer, path string) error {
	rows := make([]enrichedRow, 0, snap.Len())
	for _, p := range snap.All() {
		rows = append(rows, enrichedFlatten(snap.Metadata.Institution, p, issuers[deref(p.Name)]))
	}

	err := writeAtomic(path, func(out io.Writer) error {
		if _, err := io.WriteString(out, utf8BOM); err != nil {
			return err
		}
		return gocsv.Marshal(&rows, out)
	})
	if err != nil {
		return fmt.Errorf("write enriched csv: %w", err)
	}

	w.logger.Info("enriched csv written", slog.String("path", path), slog.Int("rows", len(rows)))
	return nil
}

func enrichedFlatten(institution string, p *portfolio.Position, iss *enrich.Issuer) enrichedRow {
	base := classifiedFlatten(institution, p)
	row := enrichedRow{
		Banco:      base.Banco,
		Ativo:      base.Ativo,
		CNPJ:       "N/A",
		Preco:      base.Preco,
		Valor:      base.Valor,
		TipoAtivo:  base.TipoAtivo,
		Categoria:  base.Categoria,
		Indexador:  base.Indexador,
		Taxa:       base.Taxa,
		Vencimento: base.Vencimento,
	}
	if iss != nil {
		row.CNPJ = iss.CNPJ
		// The registry's legal name wins; the model's guess only stands in
		// when the registry omitted one.
		row.RazaoSocial = iss.LegalName
		if row.RazaoSocial == "" {
			row.RazaoSocial = iss.Company
		}
		row.Situacao = iss.Status
	}
	return row
}
