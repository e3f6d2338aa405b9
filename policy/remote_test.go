package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteClient_Decide_Allow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"allow":true,"rule":"allow-prod-reads"}}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Second)
	decision, err := client.Decide(context.Background(), Input{Action: "read"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.Allow {
		t.Fatal("expected allow decision")
	}
	if decision.Rule != "allow-prod-reads" {
		t.Errorf("expected rule name propagated, got %q", decision.Rule)
	}
}

func TestRemoteClient_Decide_NonSuccessDegradesToDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Second)
	decision, err := client.Decide(context.Background(), Input{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decision.Allow {
		t.Fatal("expected default deny on non-2xx response")
	}
	if decision.Reason != "policy_unavailable" {
		t.Errorf("expected policy_unavailable reason, got %q", decision.Reason)
	}
}

func TestRemoteClient_Decide_TimeoutDegradesToDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"result":{"allow":true}}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Millisecond)
	decision, err := client.Decide(context.Background(), Input{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decision.Allow {
		t.Fatal("expected default deny on timeout")
	}
	if decision.Reason != "policy_unavailable" {
		t.Errorf("expected policy_unavailable reason, got %q", decision.Reason)
	}
}

func TestRemoteClient_Decide_MalformedBodyDegradesToDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Second)
	decision, err := client.Decide(context.Background(), Input{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decision.Allow {
		t.Fatal("expected default deny on malformed response body")
	}
}
