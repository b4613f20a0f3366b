package mailbox

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
)

// quotedOperators take exactly one operand, which is always re-quoted.
// Date operators (SINCE, BEFORE, ON...) are deliberately absent.
var quotedOperators = map[string]struct{}{
	"FROM":    {},
	"TO":      {},
	"CC":      {},
	"BCC":     {},
	"SUBJECT": {},
	"BODY":    {},
	"TEXT":    {},
}

// TranslateQuery turns a free-form search such as "UNSEEN FROM boss@corp.com"
// into search tokens with every operand of an address/text operator wrapped
// in double quotes. Anything it does not recognise passes through as is.
func TranslateQuery(query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || strings.EqualFold(trimmed, "ALL") {
		return []string{"ALL"}
	}

	tokens := strings.Fields(trimmed)
	out := make([]string, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		upper := strings.ToUpper(token)

		if _, ok := quotedOperators[upper]; ok && i+1 < len(tokens) {
			value := strings.Trim(tokens[i+1], `"'`)
			out = append(out, upper, `"`+value+`"`)
			i++
			continue
		}
		out = append(out, token)
	}

	return out
}

// CriteriaFromTokens feeds translated tokens to go-imap's criteria parser.
// Quoted operands are unwrapped once; the parser applies keyword semantics.
func CriteriaFromTokens(tokens []string) (*imap.SearchCriteria, error) {
	fields := make([]interface{}, 0, len(tokens))
	for _, token := range tokens {
		fields = append(fields, unquote(token))
	}

	criteria := imap.NewSearchCriteria()
	if err := criteria.ParseWithCharset(fields, nil); err != nil {
		return nil, fmt.Errorf("parse search criteria %q: %w", strings.Join(tokens, " "), err)
	}
	return criteria, nil
}

func unquote(token string) string {
	if len(token) >= 2 && strings.HasPrefix(token, `"`) && strings.HasSuffix(token, `"`) {
		return token[1 : len(token)-1]
	}
	return token
}
