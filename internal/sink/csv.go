package sink

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/delfi-foods/pricescout/internal/model"
)

// tableHeader is the fixed output column set.
var tableHeader = []string{"SKU", "Site", "Price", "Store_Count", "Skroutz_Price"}

// CSVTable writes the final result table. Absent store counts and
// aggregator prices render as empty cells, never as zero.
type CSVTable struct {
	path string
}

// NewCSVTable creates a CSV table sink at path.
func NewCSVTable(path string) *CSVTable {
	return &CSVTable{path: path}
}

// AppendDiagnostic is a no-op: the table is written once at the end.
func (c *CSVTable) AppendDiagnostic(context.Context, Diagnostic) error {
	return nil
}

func (c *CSVTable) WriteFinalTable(_ context.Context, rows []model.ReconciliationResult) error {
	f, err := os.Create(c.path)
	if err != nil {
		return eris.Wrap(err, "csv sink: create")
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(tableHeader); err != nil {
		return eris.Wrap(err, "csv sink: write header")
	}
	for _, r := range rows {
		record := []string{
			r.SKU,
			r.WinningSource,
			formatPrice(r.MinimumPrice),
			emptyIfZeroInt(r.MaxStoreCount),
			emptyIfZeroFloat(r.MaxAggregatorPrice),
		}
		if err := w.Write(record); err != nil {
			return eris.Wrapf(err, "csv sink: write row %s", r.SKU)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "csv sink: flush")
}

func emptyIfZeroInt(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func emptyIfZeroFloat(v float64) string {
	if v <= 0 {
		return ""
	}
	return formatPrice(v)
}
