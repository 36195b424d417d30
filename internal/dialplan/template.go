package dialplan

import (
	"regexp"
	"strings"
)

// templateToken matches {{name}} placeholders with optional inner whitespace.
var templateToken = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// ExpandTemplate replaces {{var}} tokens in data with values from vars.
// Tokens with no matching variable are left verbatim.
func ExpandTemplate(data string, vars map[string]string) string {
	return templateToken.ReplaceAllStringFunc(data, func(token string) string {
		name := templateToken.FindStringSubmatch(token)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return token
	})
}

// TemplateVars builds the variable set rule action templates are expanded
// against.
func TemplateVars(tenantID, destination, domain, callContext string) map[string]string {
	return map[string]string{
		"tenantId":    tenantID,
		"destination": destination,
		"domain":      domain,
		"context":     callContext,
		"digits":      stripNonDigits(destination),
	}
}

// stripNonDigits removes every non-digit character.
func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
