package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	sentinelerrors "github.com/byteness/sentinel-authz/errors"
)

// RemoteClient implements Client against an HTTP policy engine evaluating a
// bundle (e.g. an OPA-compatible sidecar). Grounded on the teacher's
// SSMAPI-interface idiom in the now-removed loader.go, adapted from an AWS
// SDK client interface to a plain http.Client wrapped by a timeout.
type RemoteClient struct {
	httpClient *http.Client
	url        string
}

// NewRemoteClient builds a remote policy client posting to url with the
// given request timeout.
func NewRemoteClient(url string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

type remoteRequestBody struct {
	Input Input `json:"input"`
}

type remoteResponseBody struct {
	Result struct {
		Allow bool   `json:"allow"`
		Rule  string `json:"rule,omitempty"`
	} `json:"result"`
}

// Decide posts the canonical input to the remote engine. Per spec §4.5,
// timeouts and non-2xx responses do not propagate as pipeline-visible
// errors: they return allow=false with an explanation, letting the caller
// map this to a 403 + audit DENY reason=policy_unavailable rather than a
// 5xx.
func (c *RemoteClient) Decide(ctx context.Context, input Input) (Decision, error) {
	body, err := json.Marshal(remoteRequestBody{Input: input})
	if err != nil {
		return Decision{}, sentinelerrors.New(sentinelerrors.ErrCodePolicyEngineUnavailable,
			"failed to encode policy input", "this is a bug, not a transient failure", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, sentinelerrors.New(sentinelerrors.ErrCodePolicyEngineUnavailable,
			"failed to build policy engine request", "check SENTINEL_POLICY_URL", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Decision{Allow: false, Package: "remote", Reason: "policy_unavailable"}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return Decision{Allow: false, Package: "remote", Reason: "policy_unavailable"}, nil
	}

	var parsed remoteResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Decision{Allow: false, Package: "remote", Reason: "policy_unavailable"}, nil
	}

	return Decision{
		Allow:   parsed.Result.Allow,
		Package: "remote",
		Rule:    parsed.Result.Rule,
	}, nil
}
