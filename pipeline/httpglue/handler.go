// Package httpglue is the thin external collaborator that adapts the
// transport-agnostic pipeline to net/http: extracting credentials from
// cookies and headers per spec §6, and translating a short-circuiting
// pipeline.Response into the exact wire bodies §6 mandates. It is kept
// deliberately small — the pipeline, not this package, owns the trust
// contract.
package httpglue

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/byteness/sentinel-authz/device"
	"github.com/byteness/sentinel-authz/pipeline"
	"github.com/byteness/sentinel-authz/replay"
)

// MaxBodyBytes is the §7 input-error bound: a request body over this size
// is rejected with 413 before the application handler ever sees it.
const MaxBodyBytes = 100 * 1024

// MaxQueryKeys and MaxPathParams are the §7 input-error bounds for request
// shape: too many query keys or path parameters is rejected with 400.
const (
	MaxQueryKeys  = 50
	MaxPathParams = 20
)

type contextKey int

const requestContextKey contextKey = iota

// RequestFromContext returns the populated pipeline.Request attached by
// Middleware once a request has cleared every step, or (nil, false) if
// called outside the middleware's downstream handler.
func RequestFromContext(ctx context.Context) (*pipeline.Request, bool) {
	req, ok := ctx.Value(requestContextKey).(*pipeline.Request)
	return req, ok
}

// Middleware wraps an application handler with the authorization pipeline.
// It has the `func(http.Handler) http.Handler` shape chi.Router.Use expects.
func Middleware(p *pipeline.Pipeline) func(http.Handler) http.Handler {
	return MiddlewareWithReplay(p, nil)
}

// MiddlewareWithReplay is Middleware plus an anti-replay guard: when a
// request carries both X-Request-Nonce and X-Request-Timestamp, checker
// rejects it before the pipeline's own steps run if the nonce was already
// seen or the timestamp has drifted outside its skew window (§6's
// `anti-replay:{sha256(nonce)}` key, testable property 7). Requests
// without the nonce header are unaffected — this guards specific
// replay-sensitive routes (e.g. a webhook or one-time-action endpoint)
// opted in by the caller, not the fixed seven-step pipeline itself, which
// the spec does not list an anti-replay step in. checker may be nil to
// disable the guard entirely, equivalent to calling Middleware.
func MiddlewareWithReplay(p *pipeline.Pipeline, checker *replay.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resp := validateShape(w, r); resp != nil {
				writeResponse(w, resp)
				return
			}

			if resp := checkReplay(r, checker); resp != nil {
				writeResponse(w, resp)
				return
			}

			creds := extractCredentials(r)

			req, resp := p.Handle(r.Context(), creds)
			if resp != nil {
				writeResponse(w, resp)
				return
			}

			ctx := context.WithValue(r.Context(), requestContextKey, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkReplay enforces the optional nonce/timestamp wire contract. A
// request with neither header is exempt; one with only one of the two is
// treated as malformed.
func checkReplay(r *http.Request, checker *replay.Checker) *pipeline.Response {
	if checker == nil {
		return nil
	}

	nonce := r.Header.Get("X-Request-Nonce")
	tsHeader := r.Header.Get("X-Request-Timestamp")
	if nonce == "" && tsHeader == "" {
		return nil
	}
	if nonce == "" || tsHeader == "" {
		return &pipeline.Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "X-Request-Nonce and X-Request-Timestamp must be supplied together"}, Reason: "malformed_request"}
	}

	tsSeconds, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return &pipeline.Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "X-Request-Timestamp must be a unix timestamp"}, Reason: "malformed_request"}
	}
	ts := time.Unix(tsSeconds, 0)

	err = checker.Check(r.Context(), nonce, ts, time.Now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, replay.ErrReplayed):
		return &pipeline.Response{Status: http.StatusConflict, Body: map[string]string{"error": "Request already processed"}, Reason: "replay_detected"}
	case errors.Is(err, replay.ErrExpired):
		return &pipeline.Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "Request timestamp outside the allowed window"}, Reason: "replay_timestamp_skew"}
	default:
		return &pipeline.Response{Status: http.StatusServiceUnavailable, Body: map[string]string{"error": "Service unavailable"}, Reason: "replay_store_unavailable"}
	}
}

// validateShape enforces the §7 input-error bounds that apply before any
// credential is even looked at: an oversized body, or a request with an
// implausible number of query keys or path parameters.
func validateShape(w http.ResponseWriter, r *http.Request) *pipeline.Response {
	if r.ContentLength > MaxBodyBytes {
		return &pipeline.Response{Status: http.StatusRequestEntityTooLarge, Body: map[string]string{"error": "Request body too large"}, Reason: "payload_too_large"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	if len(r.URL.Query()) > MaxQueryKeys {
		return &pipeline.Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "Too many query parameters"}, Reason: "malformed_request"}
	}

	if rc := chi.RouteContext(r.Context()); rc != nil && len(rc.URLParams.Keys) > MaxPathParams {
		return &pipeline.Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "Too many path parameters"}, Reason: "malformed_request"}
	}

	return nil
}

// extractCredentials reads the §6 inbound HTTP contract: accessToken
// cookie (the session id), X-Device-Id header (required), and the optional
// context headers the risk engine consults.
func extractCredentials(r *http.Request) pipeline.Credentials {
	creds := pipeline.Credentials{
		Resource: r.URL.Path,
		Action:   r.Method,
	}

	if cookie, err := r.Cookie("accessToken"); err == nil {
		creds.SessionID = cookie.Value
	}

	creds.DeviceID = r.Header.Get("X-Device-Id")
	creds.Geo = r.Header.Get("X-Geo")
	creds.UserAgent = r.Header.Get("User-Agent")
	creds.Automation = r.Header.Get("X-Automation") != ""
	creds.IP = clientIP(r)
	creds.Posture = parsePosture(r.Header.Get("X-Device-Posture"))

	// A missing X-Device-Id is not special-cased here: it reaches
	// enforceDeviceBinding as an empty string, which will not match a
	// session's bound device id and is denied (and audited) there, same as
	// any other device mismatch.
	return creds
}

// parsePosture decodes the optional X-Device-Posture header: a JSON-encoded
// device.DevicePosture emitted by the endpoint's posture collector agent
// alongside the request. A missing or malformed header yields nil, which
// risk.Signals treats as "posture unknown" rather than failing the request
// — posture is supporting evidence for the device-mismatch signal, not an
// independent gate.
func parsePosture(header string) *device.DevicePosture {
	if header == "" {
		return nil
	}
	var p device.DevicePosture
	if err := json.Unmarshal([]byte(header), &p); err != nil {
		return nil
	}
	return &p
}

// clientIP extracts the caller's address from RemoteAddr, stripping the
// port. Not X-Forwarded-For aware: this pipeline sits directly behind the
// edge that terminates TLS, not behind an arbitrary proxy chain.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeResponse translates a pipeline.Response into the exact wire shape
// spec §6 mandates for each status.
func writeResponse(w http.ResponseWriter, resp *pipeline.Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Status == http.StatusTooManyRequests && resp.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(resp.RetryAfter.Seconds())))
	}
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}
