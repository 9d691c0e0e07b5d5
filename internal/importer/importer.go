package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

type ProductWriter interface {
	SaveProduct(ctx context.Context, token string, form backend.ProductForm) error
}

// OpenFunc opens the picture referenced by a row.
type OpenFunc func(path string) (io.ReadCloser, error)

// CSVImporter reads a product sheet and creates or updates each row through
// the admin product API.
//
// Recognised columns: id, name, description, price, productBrandId,
// productTypeId, quantity, picture. Only name, price, productBrandId and
// productTypeId are required. A row with an id updates that product; picture
// is a path relative to the sheet's directory.
type CSVImporter struct {
	reader *csv.Reader
	writer ProductWriter
	token  string
	dir    string
	open   OpenFunc
}

func NewCSVImporter(r io.Reader, writer ProductWriter, token, dir string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader: csvr,
		writer: writer,
		token:  token,
		dir:    dir,
		open:   func(path string) (io.ReadCloser, error) { return os.Open(path) },
	}
}

// WithOpener replaces the function used to read picture files.
func (i *CSVImporter) WithOpener(open OpenFunc) *CSVImporter {
	i.open = open
	return i
}

type csvRow struct {
	line    int
	id      int
	name    string
	desc    string
	price   domain.Money
	brandID int
	typeID  int
	qty     int
	picture string
}

// Run saves every row in order and returns how many were saved. It stops at
// the first invalid or rejected row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range []string{"name", "price", "productbrandid", "producttypeid"} {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		row, err := parseRow(record, index, line)
		if err != nil {
			return imported, err
		}
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row csvRow) error {
	form := backend.ProductForm{
		ID:             row.id,
		Name:           row.name,
		Description:    row.desc,
		Price:          row.price,
		ProductBrandID: row.brandID,
		ProductTypeID:  row.typeID,
		Quantity:       row.qty,
	}
	if row.picture != "" {
		path := row.picture
		if !filepath.IsAbs(path) {
			path = filepath.Join(i.dir, path)
		}
		f, err := i.open(path)
		if err != nil {
			return fmt.Errorf("line %d: open picture: %w", row.line, err)
		}
		defer f.Close()
		form.Picture = &backend.Upload{Filename: filepath.Base(path), Content: f}
	}

	if err := i.writer.SaveProduct(ctx, i.token, form); err != nil {
		return fmt.Errorf("line %d: save product %q: %w", row.line, row.name, err)
	}
	return nil
}

// headerIndex maps lower-cased column names to their position.
func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int, line int) (csvRow, error) {
	row := csvRow{
		line:    line,
		name:    pick(record, index, "name"),
		desc:    pick(record, index, "description"),
		picture: pick(record, index, "picture"),
	}
	if row.name == "" {
		return row, fmt.Errorf("line %d: name is required", line)
	}

	priceStr := pick(record, index, "price")
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price < 0 {
		return row, fmt.Errorf("line %d: invalid price %q", line, priceStr)
	}
	row.price = domain.NewMoney(price)

	ints := []struct {
		col      string
		dst      *int
		required bool
	}{
		{"id", &row.id, false},
		{"productbrandid", &row.brandID, true},
		{"producttypeid", &row.typeID, true},
		{"quantity", &row.qty, false},
	}
	for _, f := range ints {
		raw := pick(record, index, f.col)
		if raw == "" {
			if f.required {
				return row, fmt.Errorf("line %d: %s is required", line, f.col)
			}
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || (f.required && v == 0) {
			return row, fmt.Errorf("line %d: invalid %s %q", line, f.col, raw)
		}
		*f.dst = v
	}
	return row, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
