package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	extism "github.com/extism/go-sdk"
)

// EmbeddedClient implements Client against an in-process, sandboxed WASM
// policy module (the teacher carries extism/go-sdk and tetratelabs/wazero
// only as indirect dependencies of an unrelated feature; this is their
// first direct use in this module). The module is expected to export a
// single function, "decide", taking the canonical JSON input and returning
// JSON matching remoteResponseBody's "result" shape.
type EmbeddedClient struct {
	mu     sync.Mutex
	plugin *extism.Plugin
}

// NewEmbeddedClient loads a compiled WASM policy module from path.
func NewEmbeddedClient(ctx context.Context, wasmPath string) (*EmbeddedClient, error) {
	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: wasmPath},
		},
	}

	plugin, err := extism.NewPlugin(ctx, manifest, extism.PluginConfig{EnableWasi: true}, nil)
	if err != nil {
		return nil, fmt.Errorf("loading embedded policy module %s: %w", wasmPath, err)
	}

	return &EmbeddedClient{plugin: plugin}, nil
}

// Decide invokes the module's "decide" export with the canonical input.
// Per spec §4.5, a module failure or malformed output degrades to
// allow=false with an explanation rather than propagating an error.
func (c *EmbeddedClient) Decide(ctx context.Context, input Input) (Decision, error) {
	data, err := Canonical(input)
	if err != nil {
		return Decision{}, err
	}

	c.mu.Lock()
	_, output, err := c.plugin.Call("decide", data)
	c.mu.Unlock()
	if err != nil {
		return Decision{Allow: false, Package: "embedded", Reason: "policy_unavailable"}, nil
	}

	var parsed remoteResponseBody
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Decision{Allow: false, Package: "embedded", Reason: "policy_unavailable"}, nil
	}

	return Decision{
		Allow:   parsed.Result.Allow,
		Package: "embedded",
		Rule:    parsed.Result.Rule,
	}, nil
}

// Close releases the module's sandboxed runtime.
func (c *EmbeddedClient) Close(ctx context.Context) error {
	return c.plugin.Close(ctx)
}
