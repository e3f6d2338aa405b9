package policy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/byteness/sentinel-authz/config"
)

// ErrPolicyNotFound is returned when the requested bundle file does not
// exist on disk.
var ErrPolicyNotFound = fmt.Errorf("policy bundle not found")

// FileLoader reads a static YAML policy bundle from disk. It replaces the
// teacher's SSM-backed Loader: the local fallback bundle here is a file on
// the pipeline host's filesystem, not a Parameter Store document, but the
// loader's shape (a narrow Load method, a not-found sentinel) is carried
// over unchanged.
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader reading the bundle at path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load reads and parses the bundle file, then rejects it if ValidateBundle
// finds a structural error (unknown version, unknown effect, zero rules).
func (l *FileLoader) Load(ctx context.Context) (*Policy, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", l.path, ErrPolicyNotFound)
		}
		return nil, fmt.Errorf("reading policy bundle %s: %w", l.path, err)
	}

	bundle, err := ParsePolicy(data)
	if err != nil {
		return nil, err
	}

	result := ValidateBundle(l.path, bundle)
	if !result.Valid {
		return nil, fmt.Errorf("policy bundle %s failed validation: %s", l.path, firstError(result))
	}
	return bundle, nil
}

func firstError(r config.ValidationResult) string {
	for _, issue := range r.Issues {
		if issue.Severity == config.SeverityError {
			return fmt.Sprintf("%s: %s", issue.Location, issue.Message)
		}
	}
	return "unknown error"
}

// BundleClient implements Client by evaluating a statically loaded rule
// bundle in process. It is the fallback engine used in local development
// and in package tests that do not stand up a remote policy engine or an
// embedded WASM artifact.
type BundleClient struct {
	bundle *Policy
}

// NewBundleClient wraps an already-loaded bundle.
func NewBundleClient(bundle *Policy) *BundleClient {
	return &BundleClient{bundle: bundle}
}

// Decide evaluates input against the bundle's rules in order; the first
// matching rule's effect determines the decision. No matching rule is a
// default deny.
func (c *BundleClient) Decide(ctx context.Context, input Input) (Decision, error) {
	if c.bundle == nil {
		return Decision{Allow: false, Reason: "no policy bundle loaded"}, nil
	}

	now := time.Now()
	for i, rule := range c.bundle.Rules {
		if conditionMatches(rule.Conditions, input, now) {
			return Decision{
				Allow:   rule.Effect == EffectAllow,
				Package: "bundle",
				Rule:    ruleLabel(rule, i),
				Reason:  rule.Reason,
			}, nil
		}
	}

	return Decision{Allow: false, Package: "bundle", Reason: "no matching rule"}, nil
}

func ruleLabel(r Rule, index int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("rule[%d]", index)
}

// conditionMatches reports whether a rule's condition matches the input.
// A rule with a non-empty Device requirement and no reported posture
// (input.Device == nil) fails closed: DeviceCondition.Matches treats a nil
// posture as satisfying only an empty condition.
func conditionMatches(c Condition, input Input, now time.Time) bool {
	if len(c.Subjects) > 0 && !contains(c.Subjects, input.Subject.ID) {
		return false
	}
	if len(c.Resources) > 0 && !contains(c.Resources, input.Resource) {
		return false
	}
	if len(c.Actions) > 0 && !contains(c.Actions, input.Action) {
		return false
	}
	if c.Time != nil && !timeWindowMatches(*c.Time, now) {
		return false
	}
	if c.Device != nil && !c.Device.Matches(input.Device) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func timeWindowMatches(w TimeWindow, now time.Time) bool {
	loc := time.UTC
	if w.Timezone != "" {
		if l, err := time.LoadLocation(w.Timezone); err == nil {
			loc = l
		}
	}
	t := now.In(loc)

	if len(w.Days) > 0 {
		if !dayMatches(w.Days, t.Weekday()) {
			return false
		}
	}
	if w.Hours != nil {
		if !hourMatches(*w.Hours, t) {
			return false
		}
	}
	return true
}

func dayMatches(days []Weekday, d time.Weekday) bool {
	names := map[time.Weekday]Weekday{
		time.Monday: Monday, time.Tuesday: Tuesday, time.Wednesday: Wednesday,
		time.Thursday: Thursday, time.Friday: Friday, time.Saturday: Saturday, time.Sunday: Sunday,
	}
	want := names[d]
	for _, day := range days {
		if day == want {
			return true
		}
	}
	return false
}

func hourMatches(hr HourRange, t time.Time) bool {
	start, err1 := time.Parse("15:04", hr.Start)
	end, err2 := time.Parse("15:04", hr.End)
	if err1 != nil || err2 != nil {
		return true
	}
	cur := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return cur >= startMin && cur <= endMin
	}
	// Window wraps past midnight.
	return cur >= startMin || cur <= endMin
}
