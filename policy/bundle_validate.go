package policy

import (
	"fmt"

	"github.com/byteness/sentinel-authz/config"
)

// ValidateBundle inspects a parsed Policy bundle for structural problems
// that ParsePolicy's YAML decode can't catch on its own: an empty rule set
// silently defaults every request to deny, a rule whose effect isn't one of
// Effect's two known values still matches and is silently treated as a deny
// by BundleClient.Decide, and a rule with no conditions at all matches every
// input, shadowing everything below it. ValidateBundle itself only reports
// these as a ValidationResult; FileLoader.Load refuses a bundle with any
// error-level issue, while warnings leave it loadable.
func ValidateBundle(source string, p *Policy) config.ValidationResult {
	result := config.ValidationResult{
		ConfigType: config.ConfigTypePolicy,
		Source:     source,
		Valid:      true,
		Issues:     []config.ValidationIssue{},
	}

	if !p.Version.IsValid() {
		result.Issues = append(result.Issues, config.ValidationIssue{
			Severity:   config.SeverityError,
			Location:   "version",
			Message:    fmt.Sprintf("unsupported schema version %q", p.Version),
			Suggestion: fmt.Sprintf("set version to %q", CurrentSchemaVersion),
		})
	}

	if len(p.Rules) == 0 {
		result.Issues = append(result.Issues, config.ValidationIssue{
			Severity:   config.SeverityError,
			Location:   "rules",
			Message:    "bundle has no rules; every request will be denied",
			Suggestion: "add at least one rule, or remove the bundle if deny-all is intended",
		})
	}

	seenNames := map[string]int{}
	shadowed := false
	for i, rule := range p.Rules {
		loc := fmt.Sprintf("rules[%d]", i)

		if !rule.Effect.IsValid() {
			result.Issues = append(result.Issues, config.ValidationIssue{
				Severity:   config.SeverityError,
				Location:   loc + ".effect",
				Message:    fmt.Sprintf("unknown effect %q", rule.Effect),
				Suggestion: "effect must be \"allow\" or \"deny\"",
			})
		}

		if rule.Name != "" {
			if first, ok := seenNames[rule.Name]; ok {
				result.Issues = append(result.Issues, config.ValidationIssue{
					Severity:   config.SeverityWarning,
					Location:   loc + ".name",
					Message:    fmt.Sprintf("duplicate rule name %q (first seen at rules[%d])", rule.Name, first),
					Suggestion: "give each rule a distinct name so audit trails stay unambiguous",
				})
			} else {
				seenNames[rule.Name] = i
			}
		}

		if !shadowed && isCatchAll(rule.Conditions) && i < len(p.Rules)-1 {
			shadowed = true
			result.Issues = append(result.Issues, config.ValidationIssue{
				Severity:   config.SeverityWarning,
				Location:   loc + ".conditions",
				Message:    "rule has no conditions and matches every input, shadowing all rules after it",
				Suggestion: "move this rule last, or add conditions to narrow it",
			})
		}
	}

	for _, issue := range result.Issues {
		if issue.Severity == config.SeverityError {
			result.Valid = false
			break
		}
	}
	return result
}

func isCatchAll(c Condition) bool {
	return len(c.Subjects) == 0 && len(c.Resources) == 0 && len(c.Actions) == 0 &&
		c.Time == nil && c.Device == nil
}
