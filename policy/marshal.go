package policy

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// MarshalPolicy serializes a Policy to YAML bytes.
// Returns the YAML representation suitable for storage or display.
func MarshalPolicy(p *Policy) ([]byte, error) {
	return yaml.Marshal(p)
}

// ParsePolicy deserializes YAML bytes into a Policy. Used by the local
// bundle loader to read the static fallback policy document from disk.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	return &p, nil
}

// MarshalPolicyToWriter serializes a Policy to YAML and writes to w.
func MarshalPolicyToWriter(p *Policy, w io.Writer) error {
	data, err := MarshalPolicy(p)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}
	_, err = w.Write(data)
	return err
}
