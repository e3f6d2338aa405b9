package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type fakeStore struct {
	items map[string]*Entitlement
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]*Entitlement)}
}

func (f *fakeStore) Create(ctx context.Context, e *Entitlement) error {
	if _, ok := f.items[e.ID]; ok {
		return ErrExists
	}
	f.items[e.ID] = e
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*Entitlement, error) {
	e, ok := f.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) Update(ctx context.Context, e *Entitlement) error {
	if _, ok := f.items[e.ID]; !ok {
		return ErrNotFound
	}
	f.items[e.ID] = e
	return nil
}

func (f *fakeStore) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Entitlement, error) {
	var out []*Entitlement
	for _, e := range f.items {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSessionRevoker struct {
	calledFor string
	count     int
	calls     int
	err       error
}

func (f *fakeSessionRevoker) RevokeAllForSubject(ctx context.Context, subjectID string) (int, error) {
	f.calledFor = subjectID
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Emit(ctx context.Context, eventType string, fields map[string]any) {
	f.events = append(f.events, eventType)
}

func TestService_GrantCreatesActiveEntitlement(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	svc := NewService(store, &fakeSessionRevoker{}, audit)

	e, err := svc.Grant(context.Background(), SubjectUser, "u1", "project", "p1", []string{"read"}, "admin1", "onboarding", nil)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if e.Status != StatusActive {
		t.Fatalf("expected ACTIVE, got %s", e.Status)
	}
	if !ValidateID(e.ID) {
		t.Fatalf("expected valid entitlement id, got %q", e.ID)
	}
	if len(audit.events) != 1 || audit.events[0] != "ENTITLEMENT_GRANTED" {
		t.Fatalf("expected ENTITLEMENT_GRANTED audit event, got %v", audit.events)
	}
}

func TestService_RevokeMarksTerminalAndRevokesSessions(t *testing.T) {
	store := newFakeStore()
	sessions := &fakeSessionRevoker{count: 2}
	audit := &fakeAudit{}
	svc := NewService(store, sessions, audit)

	e, err := svc.Grant(context.Background(), SubjectUser, "u1", "project", "p1", []string{"read"}, "admin1", "onboarding", nil)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if err := svc.Revoke(context.Background(), e.ID, "admin2", "offboarding"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	got, _ := store.Get(context.Background(), e.ID)
	if got.Status != StatusRevoked {
		t.Fatalf("expected REVOKED, got %s", got.Status)
	}
	if !got.Status.IsTerminal() {
		t.Fatal("expected REVOKED to be terminal")
	}
	if got.RevokedAt == nil {
		t.Fatal("expected RevokedAt to be set")
	}
	if sessions.calledFor != "u1" {
		t.Fatalf("expected RevokeAllForSubject called for u1, got %q", sessions.calledFor)
	}
	if len(audit.events) != 2 || audit.events[1] != "ENTITLEMENT_REVOKED" {
		t.Fatalf("expected ENTITLEMENT_REVOKED audit event, got %v", audit.events)
	}
}

func TestService_RevokeUnknownReturnsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeSessionRevoker{}, nil)
	if err := svc.Revoke(context.Background(), "missing", "admin", "cleanup"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_RevokePropagatesSessionRevokeFailure(t *testing.T) {
	store := newFakeStore()
	sessionErr := errors.New("redis unavailable")
	sessions := &fakeSessionRevoker{err: sessionErr}
	audit := &fakeAudit{}
	svc := NewService(store, sessions, audit)
	svc.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Microsecond
		b.MaxInterval = time.Microsecond
		return b
	}

	e, err := svc.Grant(context.Background(), SubjectUser, "u1", "project", "p1", []string{"read"}, "admin1", "onboarding", nil)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}

	err = svc.Revoke(context.Background(), e.ID, "admin2", "offboarding")
	if err == nil {
		t.Fatal("expected Revoke to return an error when session revocation fails")
	}
	if !errors.Is(err, sessionErr) {
		t.Fatalf("expected returned error to wrap the session-store error, got %v", err)
	}

	got, _ := store.Get(context.Background(), e.ID)
	if got.Status != StatusRevoked {
		t.Fatalf("expected the entitlement to still be marked REVOKED, got %s", got.Status)
	}
	if sessions.calls < 2 {
		t.Fatalf("expected RevokeAllForSubject to be retried, got %d call(s)", sessions.calls)
	}
	if len(audit.events) != 2 || audit.events[1] != "ENTITLEMENT_REVOKED" {
		t.Fatalf("expected an ENTITLEMENT_REVOKED audit event to still be emitted, got %v", audit.events)
	}
}
