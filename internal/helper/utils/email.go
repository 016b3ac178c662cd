package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/juju/errors"
)

func ExtractEmailDomain(email string) (string, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", errors.NotValidf("email %q", email)
	}
	return parts[1], nil
}

// NormalizeName lower-cases a name and drops whitespace so it can be used as
// an email local part.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "")
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateInstitutionalEmail checks email against
// first.last[-N]@[student.]orgDomain using the normalized names.
func ValidateInstitutionalEmail(first, last, email, orgDomain string) error {
	pattern := fmt.Sprintf(`^%s\.%s(-\d+)?@(student\.)?%s$`,
		regexp.QuoteMeta(NormalizeName(first)),
		regexp.QuoteMeta(NormalizeName(last)),
		regexp.QuoteMeta(strings.ToLower(orgDomain)),
	)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errors.Trace(err)
	}
	if !re.MatchString(NormalizeEmail(email)) {
		return errors.NewNotValid(nil, fmt.Sprintf("email must match firstname.lastname[-N]@[student.]%s", orgDomain))
	}
	return nil
}

func BaseEmail(first, last, domain string) string {
	return fmt.Sprintf("%s.%s@%s", NormalizeName(first), NormalizeName(last), strings.ToLower(domain))
}

// AllocateEmail returns first.last@domain when free, otherwise
// first.last-k@domain for the smallest k >= 1 that taken reports as free.
func AllocateEmail(first, last, domain string, taken func(email string) bool) string {
	email := BaseEmail(first, last, domain)
	if !taken(email) {
		return email
	}
	local, host, _ := strings.Cut(email, "@")
	for k := 1; ; k++ {
		candidate := fmt.Sprintf("%s-%d@%s", local, k, host)
		if !taken(candidate) {
			return candidate
		}
	}
}
