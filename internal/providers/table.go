package providers

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/coords"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	ierrors "github.com/preston-bernstein/game-ingest-service/internal/errors"
)

// TableAdapter extracts rows from HTML tables using the selector set and
// column mapping of a configured source.
type TableAdapter struct {
	cfg        config.SourceConfig
	confidence domain.Confidence
}

// NewTableAdapter builds an adapter from a source definition.
func NewTableAdapter(cfg config.SourceConfig) *TableAdapter {
	return &TableAdapter{
		cfg:        cfg,
		confidence: domain.ParseConfidence(cfg.Confidence),
	}
}

// NewTableAdapters builds one adapter per source definition, in order.
func NewTableAdapters(cfgs []config.SourceConfig) []Adapter {
	out := make([]Adapter, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, NewTableAdapter(cfg))
	}
	return out
}

func (a *TableAdapter) Name() string {
	return a.cfg.Name
}

func (a *TableAdapter) Primary() bool {
	return a.cfg.Priority == "primary"
}

func (a *TableAdapter) Confidence() domain.Confidence {
	return a.confidence
}

func (a *TableAdapter) URL(kind string, vars map[string]string) (string, bool) {
	return a.cfg.URLFor(kind, vars)
}

// Coordinates reports the pixel fields and box for kind, if it carries any.
func (a *TableAdapter) Coordinates(kind string) (coords.Fields, coords.Box, bool) {
	table, ok := a.cfg.Tables[kind]
	if !ok || table.Coordinates == nil {
		return coords.Fields{}, coords.Box{}, false
	}
	c := table.Coordinates
	return coords.Fields{X: c.XField, Y: c.YField},
		coords.Box{X: c.Box.X, Y: c.Box.Y, Width: c.Box.Width, Height: c.Box.Height},
		true
}

// Parse decodes body to UTF-8 and returns one row per matched table row.
// Rows with no cells and no mapped fields (header rows, spacers) are dropped.
func (a *TableAdapter) Parse(kind string, body []byte, contentType string) ([]domain.Row, error) {
	table, ok := a.cfg.Tables[kind]
	if !ok {
		return nil, ierrors.ParseFailure(fmt.Sprintf("%s has no %s table", a.cfg.Name, kind), nil)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decodeUTF8(body, contentType)))
	if err != nil {
		return nil, ierrors.ParseFailure(fmt.Sprintf("%s %s document", a.cfg.Name, kind), err)
	}

	var rows []domain.Row
	doc.Find(table.RowSelector).Each(func(i int, s *goquery.Selection) {
		if i < table.SkipRows {
			return
		}
		if row, ok := extractRow(s, table); ok {
			rows = append(rows, row)
		}
	})
	return rows, nil
}

func extractRow(s *goquery.Selection, table config.TableConfig) (domain.Row, bool) {
	var cells []string
	s.Find(table.CellSelector).Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(c.Text()))
	})

	fields := make(map[string]string, len(table.Columns)+len(table.Attributes))
	for name, idx := range table.Columns {
		if idx >= 0 && idx < len(cells) && cells[idx] != "" {
			fields[name] = cells[idx]
		}
	}
	for name, attr := range table.Attributes {
		if v := attrValue(s, attr); v != "" {
			fields[name] = v
		}
	}
	if len(cells) == 0 && len(fields) == 0 {
		return domain.Row{}, false
	}
	row := domain.Row{Cells: cells}
	if len(fields) > 0 {
		row.Fields = fields
	}
	return row, true
}

// attrValue reads attr from the row element, falling back to the first descendant carrying it.
func attrValue(s *goquery.Selection, attr string) string {
	if v, ok := s.Attr(attr); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.Find("[" + attr + "]").First().AttrOr(attr, ""))
}

func decodeUTF8(body []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if utf8.Valid(body) {
			return body
		}
		return bytes.ToValidUTF8(body, []byte("\uFFFD"))
	}
	return decoded
}
