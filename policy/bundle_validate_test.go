package policy

import (
	"testing"

	"github.com/byteness/sentinel-authz/config"
)

func hasSeverity(r config.ValidationResult, sev config.IssueSeverity) bool {
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			return true
		}
	}
	return false
}

func TestValidateBundle_EmptyRulesIsError(t *testing.T) {
	result := ValidateBundle("test.yaml", &Policy{Version: CurrentSchemaVersion})
	if result.Valid {
		t.Fatal("expected empty rule set to be invalid")
	}
	if !hasSeverity(result, config.SeverityError) {
		t.Fatal("expected an error issue for empty rule set")
	}
}

func TestValidateBundle_UnknownVersionIsError(t *testing.T) {
	result := ValidateBundle("test.yaml", &Policy{
		Version: "99",
		Rules:   []Rule{{Name: "r", Effect: EffectAllow, Conditions: Condition{Actions: []string{"read"}}}},
	})
	if result.Valid {
		t.Fatal("expected unknown version to be invalid")
	}
}

func TestValidateBundle_UnknownEffectIsError(t *testing.T) {
	result := ValidateBundle("test.yaml", &Policy{
		Version: CurrentSchemaVersion,
		Rules:   []Rule{{Name: "r", Effect: "maybe", Conditions: Condition{Actions: []string{"read"}}}},
	})
	if result.Valid {
		t.Fatal("expected unknown effect to be invalid")
	}
}

func TestValidateBundle_DuplicateNameIsWarning(t *testing.T) {
	result := ValidateBundle("test.yaml", &Policy{
		Version: CurrentSchemaVersion,
		Rules: []Rule{
			{Name: "dup", Effect: EffectAllow, Conditions: Condition{Actions: []string{"read"}}},
			{Name: "dup", Effect: EffectDeny, Conditions: Condition{Actions: []string{"write"}}},
		},
	})
	if !result.Valid {
		t.Fatal("expected duplicate names to still be valid (warning, not error)")
	}
	if !hasSeverity(result, config.SeverityWarning) {
		t.Fatal("expected a warning issue for duplicate rule names")
	}
}

func TestValidateBundle_NonTerminalCatchAllIsWarning(t *testing.T) {
	result := ValidateBundle("test.yaml", &Policy{
		Version: CurrentSchemaVersion,
		Rules: []Rule{
			{Name: "allow-all", Effect: EffectAllow},
			{Name: "deny-writes", Effect: EffectDeny, Conditions: Condition{Actions: []string{"write"}}},
		},
	})
	if !result.Valid {
		t.Fatal("expected shadowing warning to still be valid")
	}
	if !hasSeverity(result, config.SeverityWarning) {
		t.Fatal("expected a warning issue for a non-terminal catch-all rule")
	}
}

func TestValidateBundle_TerminalCatchAllIsNotFlagged(t *testing.T) {
	result := ValidateBundle("test.yaml", &Policy{
		Version: CurrentSchemaVersion,
		Rules: []Rule{
			{Name: "deny-writes", Effect: EffectDeny, Conditions: Condition{Actions: []string{"write"}}},
			{Name: "allow-all", Effect: EffectAllow},
		},
	})
	if !result.Valid || len(result.Issues) != 0 {
		t.Fatalf("expected a clean result for a terminal catch-all, got %+v", result)
	}
}
