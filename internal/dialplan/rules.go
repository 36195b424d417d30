package dialplan

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/database/models"
)

// MatchedRule is the outcome of a rule engine resolution: the winning rule
// and its template-expanded action list.
type MatchedRule struct {
	Rule    models.DialplanRule
	Actions []Action
}

// RuleEngine matches destinations against tenant-defined dialplan rules.
type RuleEngine struct {
	rules database.DialplanRuleRepository
}

// NewRuleEngine creates a RuleEngine over the given repository.
func NewRuleEngine(rules database.DialplanRuleRepository) *RuleEngine {
	return &RuleEngine{rules: rules}
}

// Resolve returns the first enabled rule of the tenant matching the
// destination, or nil when none matches. Rules are evaluated in priority
// then creation order; a rule declaring a context different from the
// caller's is skipped. Rules never combine: the first match wins.
func (e *RuleEngine) Resolve(ctx context.Context, tenantID int64, destination, callContext, domain string) (*MatchedRule, error) {
	rules, err := e.rules.ListEnabledByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if rule.Context != "" && rule.Context != callContext {
			continue
		}
		if !ruleMatches(rule, destination) {
			continue
		}

		raw, err := e.rules.ListActions(ctx, rule.ID)
		if err != nil {
			return nil, err
		}

		vars := TemplateVars(strconv.FormatInt(tenantID, 10), destination, domain, callContext)
		matched := &MatchedRule{Rule: rule}
		for _, a := range raw {
			matched.Actions = append(matched.Actions, Action{
				Application: a.Application,
				Data:        ExpandTemplate(a.Data, vars),
			})
		}
		return matched, nil
	}
	return nil, nil
}

// ruleMatches tests a destination against one rule. A malformed regex
// pattern is treated as a non-match, never an error.
func ruleMatches(rule models.DialplanRule, destination string) bool {
	switch rule.MatchType {
	case models.MatchExact:
		return destination == rule.Pattern
	case models.MatchPrefix:
		return rule.Pattern != "" && strings.HasPrefix(destination, rule.Pattern)
	case models.MatchRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			slog.Debug("dialplan rule pattern failed to compile, skipping",
				"rule_id", rule.ID, "pattern", rule.Pattern, "error", err)
			return false
		}
		return re.MatchString(destination)
	default:
		return false
	}
}
