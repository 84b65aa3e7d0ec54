package services

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
)

var (
	reUpper   = regexp.MustCompile(`[A-Z]`)
	reLower   = regexp.MustCompile(`[a-z]`)
	reDigit   = regexp.MustCompile(`[0-9]`)
	reSpecial = regexp.MustCompile("[@$!%*?&#^()_+\\-=\\[\\]{};:'\",.<>/\\\\|`~]")
)

// PasswordPolicy is the complexity rule set for account passwords.
type PasswordPolicy struct {
	MinLength int
	// Personal fragments shorter than this are not checked.
	MinFragment int
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, MinFragment: 3}
}

// Validate checks password against the policy and the account's personal
// details. It returns a validation error on the given field.
func (p PasswordPolicy) Validate(field, password string, personal ...string) error {
	err := validation.Validate(password,
		validation.Required.Error("password is required"),
		validation.Length(p.MinLength, 0).Error("password must be at least 8 characters long"),
		validation.Match(reUpper).Error("password must contain at least one uppercase letter"),
		validation.Match(reLower).Error("password must contain at least one lowercase letter"),
		validation.Match(reDigit).Error("password must contain at least one digit"),
		validation.Match(reSpecial).Error("password must contain at least one special character"),
		validation.By(p.notPersonal(personal)),
	)
	if err != nil {
		return apperr.Field(field, err.Error())
	}
	return nil
}

func (p PasswordPolicy) notPersonal(personal []string) validation.RuleFunc {
	return func(value interface{}) error {
		pw := strings.ToLower(value.(string))
		for _, frag := range personal {
			frag = strings.ToLower(strings.TrimSpace(frag))
			if len(frag) < p.MinFragment {
				continue
			}
			if strings.Contains(pw, frag) {
				return errors.New("password must not contain your name or email")
			}
		}
		return nil
	}
}

// personalFragments returns the account details a password may not contain.
func personalFragments(firstName, lastName, email string) []string {
	return []string{firstName, lastName, models.EmailLocalPart(email)}
}
