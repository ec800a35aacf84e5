package orders

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("orders: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("orders: malformed frontmatter")
)

// ParseFrontMatter extracts the order header and the markdown body from a
// receipt document.
func ParseFrontMatter(content []byte) (Record, []byte, error) {
	if len(content) == 0 {
		return Record{}, nil, ErrMissingFrontMatter
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Record{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Record{}, nil, ErrMalformedFrontMatter
	}
	var env envelope
	if err := yaml.Unmarshal(parts[0], &env); err != nil {
		return Record{}, nil, fmt.Errorf("orders: parse frontmatter: %w", err)
	}
	rec, err := env.toRecord()
	if err != nil {
		return Record{}, nil, err
	}
	return rec, parts[1], nil
}

// WriteFrontMatter renders the header and body with YAML fences.
func WriteFrontMatter(rec Record, body []byte) ([]byte, error) {
	if rec.OrderID == "" {
		return nil, fmt.Errorf("orders: record missing order id")
	}
	var env envelope
	env.fromRecord(rec)
	data, err := yaml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("orders: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

type envelope struct {
	Order orderHeader `yaml:"order"`
}

// Amounts are kept as two-decimal strings so the header reads like the
// receipt.
type orderHeader struct {
	ID       string `yaml:"id"`
	Status   string `yaml:"status"`
	Placed   string `yaml:"placed"`
	Lines    int    `yaml:"lines"`
	Units    int    `yaml:"units"`
	Subtotal string `yaml:"subtotal"`
	Tax      string `yaml:"tax"`
	Delivery string `yaml:"delivery"`
	Total    string `yaml:"total"`
}

const timeLayout = time.RFC3339

func (e envelope) toRecord() (Record, error) {
	h := e.Order
	if strings.TrimSpace(h.ID) == "" || strings.TrimSpace(h.Status) == "" {
		return Record{}, ErrMalformedFrontMatter
	}
	placed, err := time.Parse(timeLayout, strings.TrimSpace(h.Placed))
	if err != nil {
		return Record{}, fmt.Errorf("orders: parse placed timestamp: %w", err)
	}
	rec := Record{
		OrderID:  h.ID,
		Status:   h.Status,
		PlacedAt: placed.UTC(),
		Lines:    h.Lines,
		Units:    h.Units,
	}
	amounts := []struct {
		field string
		value string
		dst   *decimal.Decimal
	}{
		{"subtotal", h.Subtotal, &rec.Subtotal},
		{"tax", h.Tax, &rec.Tax},
		{"delivery", h.Delivery, &rec.Delivery},
		{"total", h.Total, &rec.Total},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(strings.TrimSpace(a.value))
		if err != nil {
			return Record{}, fmt.Errorf("orders: parse %s: %w", a.field, err)
		}
		*a.dst = d
	}
	return rec, nil
}

func (e *envelope) fromRecord(rec Record) {
	e.Order = orderHeader{
		ID:       rec.OrderID,
		Status:   rec.Status,
		Placed:   rec.PlacedAt.UTC().Format(timeLayout),
		Lines:    rec.Lines,
		Units:    rec.Units,
		Subtotal: rec.Subtotal.StringFixed(2),
		Tax:      rec.Tax.StringFixed(2),
		Delivery: rec.Delivery.StringFixed(2),
		Total:    rec.Total.StringFixed(2),
	}
}
