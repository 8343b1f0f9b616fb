package users

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// PolicyRule is a single password rule. Check returns a human readable
// reason when the candidate fails, or empty when it passes. Rules receive
// the associated account email so they can reject passwords derived from it.
type PolicyRule struct {
	Name  string
	Check func(password, email string) (reason string)
}

// PasswordPolicy validates candidate passwords before they are hashed and
// stored. The rule set is data; callers are untouched when rules are added.
type PasswordPolicy struct {
	rules []PolicyRule
}

// DefaultPasswordPolicy matches the account service's business rules:
// minimum length of 8, and the password must not contain the account email.
// The email containment check is an exact, case-sensitive substring match.
func DefaultPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(
		PolicyRule{
			Name: "min-length",
			Check: func(password, _ string) string {
				if len(password) < 8 {
					return "Password should be at least 8 characters"
				}
				return ""
			},
		},
		PolicyRule{
			Name: "no-email",
			Check: func(password, email string) string {
				if email != "" && strings.Contains(password, email) {
					return "Password should not contain email"
				}
				return ""
			},
		},
	)
}

// NewPasswordPolicy builds a policy from an explicit rule list.
func NewPasswordPolicy(rules ...PolicyRule) *PasswordPolicy {
	return &PasswordPolicy{rules: rules}
}

// WithRule appends a rule and returns the policy for chaining.
func (p *PasswordPolicy) WithRule(rule PolicyRule) *PasswordPolicy {
	p.rules = append(p.rules, rule)
	return p
}

// Validate runs every rule in order and rejects on the first violation.
// Violations carry the rule name and reason; they are always recoverable by
// the caller.
func (p *PasswordPolicy) Validate(password, email string) error {
	for _, rule := range p.rules {
		if rule.Check == nil {
			continue
		}
		if reason := rule.Check(password, email); reason != "" {
			return goerrors.New(reason, goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodePolicyViolation).
				WithMetadata(map[string]any{
					"rule": rule.Name,
				})
		}
	}
	return nil
}
