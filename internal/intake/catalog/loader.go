package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/smart-order-intake/server/internal/intake/model"
)

// CSV header names of the catalog source.
const (
	ColCode        = "Product_Code"
	ColName        = "Product_Name"
	ColPrice       = "Price"
	ColStock       = "Available_in_Stock"
	ColMinOrderQty = "Min_Order_Quantity"
	ColDescription = "Description"
)

var requiredColumns = []string{ColCode, ColName, ColPrice, ColStock, ColMinOrderQty, ColDescription}

// LoadError reports why the catalog source could not be loaded. Row is the
// 1-based CSV line (header is line 1) or 0 when the failure is not row specific.
type LoadError struct {
	Path   string
	Row    int
	Column string
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("load catalog %s: line %d column %s: %v", e.Path, e.Row, e.Column, e.Err)
	case e.Row > 0:
		return fmt.Sprintf("load catalog %s: line %d: %v", e.Path, e.Row, e.Err)
	default:
		return fmt.Sprintf("load catalog %s: %v", e.Path, e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads the catalog CSV at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return Read(path, f)
}

// Read parses catalog CSV from r; name is only used in errors.
func Read(name string, r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("missing header row")
		}
		return nil, &LoadError{Path: name, Row: 1, Err: err}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		// strip a UTF-8 BOM left by spreadsheet exports
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, &LoadError{Path: name, Row: 1, Column: c, Err: errors.New("missing column")}
		}
	}

	var products []model.Product
	seen := make(map[string]int)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: name, Row: line, Err: err}
		}
		p, col, err := parseRow(rec, cols)
		if err != nil {
			return nil, &LoadError{Path: name, Row: line, Column: col, Err: err}
		}
		key := codeKey(p.Code)
		if first, dup := seen[key]; dup {
			return nil, &LoadError{Path: name, Row: line, Column: ColCode, Err: fmt.Errorf("duplicate product code %q (first on line %d)", p.Code, first)}
		}
		seen[key] = line
		products = append(products, p)
	}

	c, err := New(products)
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	return c, nil
}

func parseRow(rec []string, cols map[string]int) (model.Product, string, error) {
	cell := func(col string) string {
		return strings.TrimSpace(rec[cols[col]])
	}

	p := model.Product{
		Code:        cell(ColCode),
		Name:        cell(ColName),
		Description: cell(ColDescription),
	}
	if p.Code == "" {
		return p, ColCode, errors.New("empty product code")
	}

	price, err := strconv.ParseFloat(cell(ColPrice), 64)
	if err != nil {
		return p, ColPrice, err
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return p, ColPrice, fmt.Errorf("invalid price %q", cell(ColPrice))
	}
	p.Price = price

	if p.Stock, err = strconv.Atoi(cell(ColStock)); err != nil {
		return p, ColStock, err
	}
	if p.Stock < 0 {
		return p, ColStock, fmt.Errorf("negative stock %d", p.Stock)
	}

	if p.MinOrderQty, err = strconv.Atoi(cell(ColMinOrderQty)); err != nil {
		return p, ColMinOrderQty, err
	}
	if p.MinOrderQty < 1 {
		return p, ColMinOrderQty, fmt.Errorf("minimum order quantity must be positive, got %d", p.MinOrderQty)
	}

	return p, "", nil
}
