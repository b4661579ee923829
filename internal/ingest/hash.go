package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const cellSeparator = "\x1f"

// NormalizeCell folds compatibility forms and full-width characters and
// collapses runs of whitespace, so cosmetic markup changes do not alter a row's identity.
func NormalizeCell(cell string) string {
	folded := width.Fold.String(norm.NFKC.String(cell))
	return strings.Join(strings.Fields(folded), " ")
}

// RowHash is the content identity of a row.
func RowHash(cells []string) string {
	normalized := make([]string, len(cells))
	for i, c := range cells {
		normalized[i] = NormalizeCell(c)
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, cellSeparator)))
	return hex.EncodeToString(sum[:])
}
