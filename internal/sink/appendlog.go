package sink

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/delfi-foods/pricescout/internal/model"
)

// AppendLog writes one diagnostic line per resolved identifier. The file
// is opened and closed per write so every line survives a process kill.
type AppendLog struct {
	path string
}

// NewAppendLog creates an append-log sink at path.
func NewAppendLog(path string) *AppendLog {
	return &AppendLog{path: path}
}

func (l *AppendLog) AppendDiagnostic(_ context.Context, d Diagnostic) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "appendlog: open")
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s, %s, %s, %v, %v\n",
		d.SKU,
		formatPrice(d.MinimumPrice),
		d.WinningSource,
		d.StoreCounts,
		d.AggregatorPrices,
	)
	if _, err := f.WriteString(line); err != nil {
		return eris.Wrap(err, "appendlog: write")
	}
	return nil
}

// WriteFinalTable is a no-op: the append log only tracks incremental
// progress.
func (l *AppendLog) WriteFinalTable(context.Context, []model.ReconciliationResult) error {
	return nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
