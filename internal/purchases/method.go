package purchases

import (
	"strings"

	"household-ledger/internal/textnorm"
)

// Normalized payment methods.
const (
	MethodCredit = "credito"
	MethodDebit  = "debito"
	MethodCash   = "dinheiro"
	MethodPix    = "pix"
	MethodTicket = "ticket"
)

// NormalizeMethod maps free-text payment methods onto the controlled
// vocabulary, ignoring accents and case. Unknown values come back folded.
func NormalizeMethod(v string) string {
	s := textnorm.Fold(strings.TrimSpace(v))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "credito"):
		return MethodCredit
	case strings.Contains(s, "debito"):
		return MethodDebit
	case strings.Contains(s, "dinheiro"):
		return MethodCash
	case strings.Contains(s, "pix"):
		return MethodPix
	case strings.Contains(s, "ticket"), strings.Contains(s, "vale"), s == "vr", s == "va":
		return MethodTicket
	}
	return s
}

// noFilter lists the loosely serialized "any method" values clients send.
var noFilter = map[string]bool{
	"":          true,
	"all":       true,
	"(todos)":   true,
	"todos":     true,
	"undefined": true,
	"null":      true,
}

func isNoFilter(method string) bool {
	return noFilter[method]
}
