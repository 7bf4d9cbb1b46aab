// Package pipeline loads the product list that feeds the engine.
package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/delfi-foods/pricescout/internal/model"
)

// Supported values for the input encoding setting.
const (
	EncodingUTF8  = "utf-8"
	EncodingUTF16 = "utf-16"
)

// LoadRecords reads the product CSV at path. Column 0 is the identifier,
// column 1 holds whitespace-separated candidate URLs. Exports from the
// buying team's spreadsheet tool arrive as UTF-16LE with a BOM, hence
// the encoding switch.
func LoadRecords(path, encoding string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open input %s", path)
	}
	defer f.Close()

	records, err := ParseRecords(f, encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse input %s", path)
	}
	return records, nil
}

// ParseRecords decodes and parses a product CSV stream.
func ParseRecords(r io.Reader, encoding string) ([]model.Record, error) {
	switch encoding {
	case EncodingUTF16:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		r = transform.NewReader(r, dec)
	case EncodingUTF8, "":
	default:
		return nil, eris.Errorf("pipeline: unsupported encoding %q", encoding)
	}

	cr := csv.NewReader(r)
	// Spreadsheet exports are sloppy: uneven column counts and stray
	// quotes inside URL cells are normal.
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records []model.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: read row")
		}
		if len(row) == 0 {
			continue
		}

		sku := strings.TrimSpace(row[0])
		if sku == "" {
			continue
		}

		var urls []string
		if len(row) > 1 {
			urls = strings.Fields(row[1])
		}
		if len(urls) == 0 {
			zap.L().Debug("row without URLs", zap.String("sku", sku))
		}
		records = append(records, model.Record{SKU: sku, URLs: urls})
	}
	return records, nil
}
