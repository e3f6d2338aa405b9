package policy

import (
	"bytes"
	"strings"
	"testing"
)

func TestMarshalPolicy_RoundTrip(t *testing.T) {
	original := &Policy{
		Version: CurrentSchemaVersion,
		Rules: []Rule{
			{
				Name:   "allow-prod-access",
				Effect: EffectAllow,
				Conditions: Condition{
					Resources: []string{"prod", "staging"},
					Subjects:  []string{"alice", "bob"},
				},
				Reason: "Allow team access to production",
			},
			{
				Name:   "deny-weekends",
				Effect: EffectDeny,
				Conditions: Condition{
					Time: &TimeWindow{
						Days: []Weekday{Saturday, Sunday},
					},
				},
			},
		},
	}

	data, err := MarshalPolicy(original)
	if err != nil {
		t.Fatalf("MarshalPolicy failed: %v", err)
	}

	parsed, err := ParsePolicy(data)
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	if parsed.Version != original.Version {
		t.Errorf("Version mismatch: got %q, want %q", parsed.Version, original.Version)
	}
	if len(parsed.Rules) != len(original.Rules) {
		t.Fatalf("Rules count mismatch: got %d, want %d", len(parsed.Rules), len(original.Rules))
	}
	if parsed.Rules[0].Name != original.Rules[0].Name {
		t.Errorf("Rule[0].Name mismatch: got %q, want %q", parsed.Rules[0].Name, original.Rules[0].Name)
	}
	if parsed.Rules[0].Effect != original.Rules[0].Effect {
		t.Errorf("Rule[0].Effect mismatch: got %q, want %q", parsed.Rules[0].Effect, original.Rules[0].Effect)
	}
	if len(parsed.Rules[0].Conditions.Subjects) != 2 {
		t.Errorf("Rule[0].Conditions.Subjects count mismatch: got %d, want 2", len(parsed.Rules[0].Conditions.Subjects))
	}
	if parsed.Rules[1].Conditions.Time == nil || len(parsed.Rules[1].Conditions.Time.Days) != 2 {
		t.Error("Rule[1].Conditions.Time not round-tripped correctly")
	}
}

func TestMarshalPolicy_EmptyPolicy(t *testing.T) {
	p := &Policy{Version: CurrentSchemaVersion}
	data, err := MarshalPolicy(p)
	if err != nil {
		t.Fatalf("MarshalPolicy failed: %v", err)
	}
	if !strings.Contains(string(data), "version") {
		t.Error("expected version field in marshaled output")
	}
}

func TestMarshalPolicyToWriter(t *testing.T) {
	p := &Policy{Version: CurrentSchemaVersion, Rules: []Rule{{Name: "r1", Effect: EffectAllow}}}
	var buf bytes.Buffer
	if err := MarshalPolicyToWriter(p, &buf); err != nil {
		t.Fatalf("MarshalPolicyToWriter failed: %v", err)
	}
	parsed, err := ParsePolicy(buf.Bytes())
	if err != nil {
		t.Fatalf("ParsePolicy failed on written output: %v", err)
	}
	if len(parsed.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(parsed.Rules))
	}
}

func TestParsePolicy_InvalidYAML(t *testing.T) {
	_, err := ParsePolicy([]byte("version: [unterminated"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
