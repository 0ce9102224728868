package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cast"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/store"
	"go.uber.org/zap"
)

// productRow is the flat shape used by CSV import and export.
type productRow struct {
	ID       string  `csv:"id"`
	Name     string  `csv:"name"`
	Price    float64 `csv:"price"`
	RFIDTag  string  `csv:"rfidTag"`
	Quantity int     `csv:"quantity"`
	Weight   string  `csv:"weight"`
	Image    string  `csv:"image"`
}

func toRow(p domain.Product) *productRow {
	r := &productRow{ID: p.ID, Name: p.Name, Price: p.Price, RFIDTag: p.RFIDTag, Quantity: p.Quantity, Image: p.Image}
	if p.Weight != nil {
		r.Weight = cast.ToString(*p.Weight)
	}
	return r
}

func (r *productRow) product() (domain.Product, error) {
	p := domain.Product{
		ID:       strings.TrimSpace(r.ID),
		Name:     strings.TrimSpace(r.Name),
		Price:    r.Price,
		RFIDTag:  strings.TrimSpace(r.RFIDTag),
		Quantity: clampQuantity(r.Quantity),
		Image:    strings.TrimSpace(r.Image),
	}
	if w := strings.TrimSpace(r.Weight); w != "" {
		f, err := cast.ToFloat64E(w)
		if err != nil {
			return p, domain.Validationf("invalid weight %q", r.Weight)
		}
		p.Weight = &f
	}
	if p.Name == "" || p.RFIDTag == "" || p.Price <= 0 {
		return p, domain.Validationf("name, price and RFID tag are required")
	}
	return p, nil
}

func (s *Service) sorted(ctx context.Context) ([]domain.Product, error) {
	products, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	sortByID(products)
	return products, nil
}

// ExportCSV writes the catalog as CSV with a header row.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	products, err := s.sorted(ctx)
	if err != nil {
		return err
	}
	rows := make([]*productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, toRow(p))
	}
	return gocsv.Marshal(rows, w)
}

var xlsxColumns = []string{"A", "B", "C", "D", "E", "F", "G"}

// ExportExcel writes the catalog as an xlsx workbook with one sheet.
func (s *Service) ExportExcel(ctx context.Context, w io.Writer) error {
	products, err := s.sorted(ctx)
	if err != nil {
		return err
	}
	const sheet = "Sheet1"
	f := excelize.NewFile()
	headers := []string{"ID", "Name", "Price", "RFID Tag", "Quantity", "Weight", "Image"}
	for i, h := range headers {
		f.SetCellValue(sheet, xlsxColumns[i]+"1", h)
	}
	for i, p := range products {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, p.ID)
		f.SetCellValue(sheet, "B"+row, p.Name)
		f.SetCellValue(sheet, "C"+row, p.Price)
		f.SetCellValue(sheet, "D"+row, p.RFIDTag)
		f.SetCellValue(sheet, "E"+row, p.Quantity)
		if p.Weight != nil {
			f.SetCellValue(sheet, "F"+row, *p.Weight)
		}
		f.SetCellValue(sheet, "G"+row, p.Image)
	}
	return f.Write(w)
}

// ImportResult counts the rows applied by ImportCSV.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ImportCSV upserts products by id. Rows without an id get the next free
// id. The whole file is rejected when any row is invalid or two products
// would share a tag.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	var rows []*productRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return ImportResult{}, domain.Validationf("parse csv: %v", err)
	}
	var res ImportResult
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		for n, row := range rows {
			p, err := row.product()
			if err != nil {
				return fmt.Errorf("row %d: %w", n+2, err)
			}
			if j := snap.ProductIndexByTag(p.RFIDTag); j >= 0 && snap.Products[j].ID != p.ID {
				return fmt.Errorf("row %d: %w", n+2, domain.ErrDuplicateTag)
			}
			if p.ID != "" {
				if i := snap.ProductIndex(p.ID); i >= 0 {
					snap.Products[i] = p
					res.Updated++
					continue
				}
			} else {
				p.ID = NextID(snap.Products)
			}
			snap.Products = append(snap.Products, p)
			res.Created++
		}
		products = append([]domain.Product(nil), snap.Products...)
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	zap.L().Info("catalog imported",
		zap.String("namespace", "catalog"),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated))
	s.publish(products)
	return res, nil
}
