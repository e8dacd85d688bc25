package ingest

import (
	"regexp"
	"strings"
)

// IdentifierRule extracts an opportunity code from free text. Pattern must capture the digits.
type IdentifierRule struct {
	Prefix  string
	Pattern *regexp.Regexp
}

// IdentifierRules are evaluated top to bottom; the first match wins.
var IdentifierRules = []IdentifierRule{
	{Prefix: "OC", Pattern: regexp.MustCompile(`(?i)OC[\s\x{00A0}]*(\d+)`)},
	{Prefix: "CTE", Pattern: regexp.MustCompile(`(?i)CTE[\s\x{00A0}]*(\d+)`)},
}

// ExtractIdentifier returns the normalized code ("OC123") found in text, or nil.
func ExtractIdentifier(text string) *string {
	return extractWith(IdentifierRules, text)
}

func extractWith(rules []IdentifierRule, text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, rule := range rules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		id := strings.ToUpper(rule.Prefix) + m[1]
		return &id
	}
	return nil
}
