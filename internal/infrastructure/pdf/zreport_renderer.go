// Package pdf genera la representación gráfica del Z-Report (cierre diario).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Sitio + N° de reporte + Fecha del cierre           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: Transacciones firmadas / Total bruto / Equipos    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Hora | Tipo | Equipo | Contador firma | Bruto       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: Leyenda de conservación fiscal                     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/reporting"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 20, Green: 20, Blue: 60}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

var _ reporting.ZReportRenderer = (*ZReportRenderer)(nil)

// ZReportRenderer implementa reporting.ZReportRenderer usando Maroto v2. Los
// artefactos quedan bajo el directorio de exportación configurado.
type ZReportRenderer struct {
	dir string
}

// NewZReportRenderer construye el renderer.
func NewZReportRenderer(dir string) *ZReportRenderer {
	return &ZReportRenderer{dir: dir}
}

// Render genera el PDF del cierre y devuelve la ruta del archivo escrito.
func (r *ZReportRenderer) Render(report *entity.ZReport, txs []*entity.FiscalTransaction) (string, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(fmt.Sprintf("Z-Report %d", report.Number), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, tr := range tableRows(txs) {
		m.AddRows(tr)
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(footerRow())

	doc, err := m.Generate()
	if err != nil {
		return "", fmt.Errorf("pdf: generar documento: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("pdf: crear directorio %s: %w", r.dir, err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("zreport-%s-%d.pdf", report.Date, report.Number))
	if err := os.WriteFile(path, doc.GetBytes(), 0o644); err != nil {
		return "", fmt.Errorf("pdf: escribir %s: %w", path, err)
	}
	return path, nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(report *entity.ZReport) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("CIERRE DIARIO (Z-REPORT)", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Sitio: "+report.SiteID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(fmt.Sprintf("N° %d", report.Number), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 1,
			}),
			text.New("Día cerrado: "+report.Date, props.Text{
				Size: 8, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

func summaryRow(report *entity.ZReport) core.Row {
	devices := "—"
	if len(report.DeviceIDs) > 0 {
		devices = strings.Join(report.DeviceIDs, ", ")
	}
	return row.New(16).Add(
		col.New(12).Add(
			text.New(fmt.Sprintf("Transacciones firmadas: %d", report.TransactionCount), props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 1,
			}),
			text.New("Total bruto: "+report.GrossTotal.StringFixed(2), props.Text{
				Style: fontstyle.Bold, Size: 11, Top: 6, Color: colorPrimary,
			}),
			text.New("Equipos: "+devices, props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Hora", 2, align.Left),
		h("Tipo", 2, align.Left),
		h("Equipo", 4, align.Left),
		h("Cont. firma", 2, align.Right),
		h("Bruto", 2, align.Right),
	)
}

func tableRows(txs []*entity.FiscalTransaction) []core.Row {
	result := make([]core.Row, 0, len(txs))
	for _, tx := range txs {
		hora := "—"
		if tx.SignedAt != nil {
			hora = tx.SignedAt.UTC().Format("15:04:05")
		}
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(hora, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(tx.Type, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(4).Add(text.New(tx.DeviceID, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(
				fmt.Sprintf("%d", tx.SignatureCounter),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				tx.GrossAmount.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

func footerRow() core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New(
			"Reporte generado por el motor fiscal. Conserve este documento junto al "+
				"diario fiscal del día como soporte de auditoría.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	))
}
