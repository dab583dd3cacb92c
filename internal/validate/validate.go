// Package validate implements the read-only policy applied to stored queries
// before they reach the data engine.
//
// The check is intentionally coarse: the statement must start with SELECT and
// must not contain any forbidden keyword anywhere in its text, including
// inside string literals and identifiers (e.g. a column named LAST_UPDATE is
// rejected). SQL grammar is not parsed. The read-only connection used by the
// executor is the second, independent layer of enforcement.
package validate

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/queryexec/internal/model"
)

// Rejection reasons.
const (
	ReasonNotSelect        = "not a SELECT"
	ReasonForbiddenKeyword = "forbidden keyword: "
)

// ForbiddenKeywords are checked in this order; the first match is reported.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "REPLACE", "MERGE",
}

const selectKeyword = "SELECT"

// Validate returns nil if sql passes the read-only policy, or a
// VALIDATION_FAILED *model.Error naming the reason.
func Validate(sql string) error {
	folded := Fold(sql)

	if !startsWithSelect(folded) {
		err := model.NewValidationError(ReasonNotSelect)
		if tok := firstToken(folded); tok != "" {
			err.Message += fmt.Sprintf(" (statement starts with %s)", tok)
			err.Details["token"] = tok
		}
		return err
	}

	for _, kw := range ForbiddenKeywords {
		if strings.Contains(folded, kw) {
			err := model.NewValidationError(ReasonForbiddenKeyword + kw)
			err.Details["keyword"] = kw
			return err
		}
	}

	return nil
}

// Fold trims, NFKC-normalizes and upper-cases sql. Compatibility forms such
// as full-width letters fold to their ASCII equivalents.
func Fold(sql string) string {
	normalized := norm.NFKC.String(strings.TrimSpace(sql))
	return cases.Upper(language.Und).String(normalized)
}

// startsWithSelect reports whether the first token of folded is SELECT.
// "SELECT*" and "SELECT(" count; "SELECTED" does not.
func startsWithSelect(folded string) bool {
	if !strings.HasPrefix(folded, selectKeyword) {
		return false
	}
	if len(folded) == len(selectKeyword) {
		return true
	}
	return !isIdentByte(folded[len(selectKeyword)])
}

// firstToken returns the leading identifier of folded, capped at 32 bytes.
func firstToken(folded string) string {
	end := 0
	for end < len(folded) && end < 32 && isIdentByte(folded[end]) {
		end++
	}
	return folded[:end]
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') ||
		b >= 0x80
}
