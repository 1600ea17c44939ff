package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var fold = cases.Fold()

// normalizeText folds case and compatibility forms and collapses whitespace,
// so "Tech  News" and "ｔｅｃｈ news" compare equal.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = fold.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// fingerprintHash hashes the normalized title and description.
func fingerprintHash(title, description string) string {
	sum := sha256.Sum256([]byte(normalizeText(title) + "|" + normalizeText(description)))
	return hex.EncodeToString(sum[:])
}

// Similarity returns 1 - levenshtein(a, b)/max(len(a), len(b)) over the
// normalized runes of a and b. Two empty strings are identical.
func Similarity(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(longest)
}
