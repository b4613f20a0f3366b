package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	"mailgate/utils"
)

// RecipientSet is the ordered list of envelope addresses that survived
// ValidateAndParse. Only that function builds one, so a policy check can
// never see unvalidated input.
type RecipientSet []string

var addressShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RequireNoCRLF rejects header values that could smuggle extra headers.
func RequireNoCRLF(value, field string) error {
	if strings.ContainsAny(value, "\r\n") {
		return utils.ValidationError(field + " must not contain CR/LF characters")
	}
	return nil
}

// ValidateAndParse checks to, cc and bcc for header injection, parses them
// as address lists and returns every address in input order.
func ValidateAndParse(to, cc, bcc string) (RecipientSet, error) {
	fields := []struct{ name, value string }{
		{"to", to},
		{"cc", cc},
		{"bcc", bcc},
	}

	for _, f := range fields {
		if err := RequireNoCRLF(f.value, f.name); err != nil {
			return nil, err
		}
	}

	var recipients RecipientSet
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		addrs, err := mail.ParseAddressList(f.value)
		if err != nil {
			return nil, utils.ValidationError(fmt.Sprintf("invalid %s address list: %s", f.name, utils.Preview(f.value, 200)))
		}
		for _, a := range addrs {
			if addr := strings.TrimSpace(a.Address); addr != "" {
				recipients = append(recipients, addr)
			}
		}
	}

	if len(recipients) == 0 {
		return nil, utils.ValidationError("no recipients provided")
	}

	for _, r := range recipients {
		if !addressShape.MatchString(r) {
			return nil, utils.ValidationError("invalid recipient address: " + r)
		}
	}
	return recipients, nil
}
