// Package orders files placed orders as markdown receipts with a YAML header.
// The archive lives outside the local store, so the wipe that follows
// checkout does not touch it.
package orders

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kingrea/storefront/internal/cart"
)

// Record is the header of one archived order.
type Record struct {
	OrderID  string
	Status   string
	PlacedAt time.Time
	Lines    int
	Units    int
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
	// Path is set when the record was read from disk.
	Path string
}

// ShortID is the first block of the order id.
func (r Record) ShortID() string {
	if len(r.OrderID) > 8 {
		return r.OrderID[:8]
	}
	return r.OrderID
}

// Archive reads and writes receipts in one directory.
type Archive struct {
	dir    string
	logger *zap.Logger
}

// Option customizes an Archive.
type Option func(*Archive)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewArchive creates dir if needed.
func NewArchive(dir string, opts ...Option) (*Archive, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("orders: archive directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("orders: create %s: %w", dir, err)
	}
	a := &Archive{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

// Record writes r as a new receipt document.
func (a *Archive) Record(_ context.Context, r cart.Receipt) error {
	rec := FromReceipt(r)
	doc, err := WriteFrontMatter(rec, renderBody(r))
	if err != nil {
		return err
	}
	path := filepath.Join(a.dir, fileName(rec))
	if err := writeAtomic(a.dir, path, doc); err != nil {
		return fmt.Errorf("orders: write %s: %w", filepath.Base(path), err)
	}
	a.logger.Info("order archived", zap.String("order_id", rec.OrderID), zap.String("path", path))
	return nil
}

// FromReceipt builds the header for r.
func FromReceipt(r cart.Receipt) Record {
	return Record{
		OrderID:  r.OrderID,
		Status:   r.Status,
		PlacedAt: r.PlacedAt.UTC(),
		Lines:    len(r.Items),
		Units:    r.Items.Units(),
		Subtotal: r.Summary.Subtotal,
		Tax:      r.Summary.Tax,
		Delivery: r.Summary.Delivery,
		Total:    r.Summary.Total,
	}
}

// List returns every readable receipt, newest first. Files that fail to
// parse are skipped and logged.
func (a *Archive) List() ([]Record, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		path := filepath.Join(a.dir, entry.Name())
		rec, _, err := readRecord(path)
		if err != nil {
			a.logger.Warn("skipping unreadable receipt", zap.String("path", path), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PlacedAt.After(records[j].PlacedAt)
	})
	return records, nil
}

// Recent returns up to n receipts, newest first. Errors read as no orders.
func (a *Archive) Recent(n int) []Record {
	if a == nil || n <= 0 {
		return nil
	}
	records, err := a.List()
	if err != nil {
		a.logger.Warn("listing receipts failed", zap.Error(err))
		return nil
	}
	if len(records) > n {
		records = records[:n]
	}
	return records
}

// Load returns the header and markdown body of the order with orderID. A
// unique prefix of the id is enough.
func (a *Archive) Load(orderID string) (Record, []byte, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Record{}, nil, errors.New("orders: order id is required")
	}
	records, err := a.List()
	if err != nil {
		return Record{}, nil, err
	}
	var match *Record
	for i := range records {
		if !strings.HasPrefix(records[i].OrderID, orderID) {
			continue
		}
		if match != nil {
			return Record{}, nil, fmt.Errorf("orders: id %q is ambiguous", orderID)
		}
		match = &records[i]
	}
	if match == nil {
		return Record{}, nil, fmt.Errorf("orders: %s: %w", orderID, fs.ErrNotExist)
	}
	return readRecord(match.Path)
}

func readRecord(path string) (Record, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, nil, err
	}
	rec, body, err := ParseFrontMatter(data)
	if err != nil {
		return Record{}, nil, err
	}
	rec.Path = path
	return rec, body, nil
}

func fileName(rec Record) string {
	return rec.PlacedAt.UTC().Format("20060102T150405Z") + "-" + rec.ShortID() + ".md"
}

func renderBody(r cart.Receipt) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Order %s\n\n", r.ShortID())
	b.WriteString("| Item | Qty | Price | Line total |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, item := range r.Items {
		title := strings.ReplaceAll(item.Title, "|", "/")
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
			title, item.Quantity, item.Price.StringFixed(2), item.LineTotal().StringFixed(2))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: $%s\n", r.Summary.SubtotalText())
	fmt.Fprintf(&b, "Tax: $%s\n", r.Summary.TaxText())
	fmt.Fprintf(&b, "Delivery: $%s\n", r.Summary.DeliveryText())
	fmt.Fprintf(&b, "**Total: $%s**\n", r.Summary.TotalText())
	return []byte(b.String())
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".receipt.*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
