package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/byteness/sentinel-authz/logging"
)

// canonical marshals a Record's content, excluding ID and ContentHash (which
// are derived, not input), to a deterministic byte form. Field order is
// fixed by struct declaration order and json.Marshal's map-key sorting, the
// same property logging/signature.go relies on for its HMAC input.
func canonical(r Record) ([]byte, error) {
	shadow := struct {
		PrevHash      string   `json:"prevHash"`
		SubjectID     string   `json:"subjectId"`
		SessionID     string   `json:"sessionId,omitempty"`
		Action        string   `json:"action"`
		Resource      string   `json:"resource,omitempty"`
		Decision      Decision `json:"decision"`
		PolicyPackage string   `json:"policyPackage,omitempty"`
		PolicyRule    string   `json:"policyRule,omitempty"`
		Roles         []string `json:"roles,omitempty"`
		Entitlements  []string `json:"entitlements,omitempty"`
		RiskLevel     string   `json:"riskLevel,omitempty"`
		MFAVerified   bool     `json:"mfaVerified"`
		IP            string   `json:"ip,omitempty"`
		UserAgent     string   `json:"userAgent,omitempty"`
		EvaluatedAt   string   `json:"evaluatedAt"`
	}{
		PrevHash:      r.PrevHash,
		SubjectID:     r.SubjectID,
		SessionID:     r.SessionID,
		Action:        r.Action,
		Resource:      r.Resource,
		Decision:      r.Decision,
		PolicyPackage: r.PolicyPackage,
		PolicyRule:    r.PolicyRule,
		Roles:         r.Roles,
		Entitlements:  r.Entitlements,
		RiskLevel:     r.RiskLevel,
		MFAVerified:   r.MFAVerified,
		IP:            r.IP,
		UserAgent:     r.UserAgent,
		EvaluatedAt:   r.EvaluatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
	return json.Marshal(shadow)
}

// contentHash computes the record's content hash given its prevHash-linked
// canonical form.
func contentHash(r Record) (string, error) {
	data, err := canonical(r)
	if err != nil {
		return "", fmt.Errorf("canonicalizing audit record: %w", err)
	}
	sum := sha256.Sum256(append(data, []byte(r.PrevHash)...))
	return hex.EncodeToString(sum[:]), nil
}

// Chain tracks the running head of a hash chain and stamps each appended
// record with its PrevHash, ContentHash, and ID. Safe for concurrent use;
// a single Chain must own a single append-ordered stream of records, since
// PrevHash linkage depends on append order.
type Chain struct {
	mu      sync.Mutex
	head    string
	hmacKey []byte
}

// NewChain starts an unsigned chain from GenesisHash. Pass a non-empty seed
// to resume an existing chain (e.g. the ContentHash of the last record
// persisted before a restart).
func NewChain(seed string) *Chain {
	if seed == "" {
		seed = GenesisHash
	}
	return &Chain{head: seed}
}

// NewSignedChain is like NewChain but additionally HMAC-signs every linked
// record with hmacKey (logging.MinKeyLength bytes minimum). A chain
// resumed from a seed supplied by an untrusted source (e.g. a
// config-managed restart value) can still be spliced onto a forged prior
// history; the signature lets a verifier with the key detect that the
// records themselves, not just their hash linkage, came from this
// deployment's key holder.
func NewSignedChain(seed string, hmacKey []byte) (*Chain, error) {
	if err := (&logging.SignatureConfig{SecretKey: hmacKey}).Validate(); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if seed == "" {
		seed = GenesisHash
	}
	return &Chain{head: seed, hmacKey: hmacKey}, nil
}

// signaturePayload is the deterministic shape signed over a linked record:
// the two hashes that already commit to its content and position in the
// chain, so the signature need not duplicate canonical()'s field list.
type signaturePayload struct {
	ContentHash string `json:"contentHash"`
	PrevHash    string `json:"prevHash"`
}

// Link stamps rec with the chain's current head as PrevHash, computes its
// ContentHash, advances the head, and returns the completed record. If the
// chain was built with NewSignedChain, the record's Signature is set too.
func (c *Chain) Link(rec Record) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec.PrevHash = c.head
	hash, err := contentHash(rec)
	if err != nil {
		return Record{}, err
	}
	rec.ContentHash = hash
	rec.ID = hash

	if c.hmacKey != nil {
		sig, err := logging.ComputeSignature(signaturePayload{ContentHash: hash, PrevHash: rec.PrevHash}, c.hmacKey)
		if err != nil {
			return Record{}, fmt.Errorf("signing audit record: %w", err)
		}
		rec.Signature = sig
	}

	c.head = hash
	return rec, nil
}

// Head returns the chain's current head hash.
func (c *Chain) Head() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// Verify walks records in order and reports whether each one's PrevHash and
// ContentHash are consistent with its predecessor, starting from
// GenesisHash. It returns the index of the first broken link, or -1 if the
// whole chain verifies. It does not check Signature; use VerifySigned for
// a chain built with NewSignedChain.
func Verify(records []Record) (brokenAt int, err error) {
	prev := GenesisHash
	for i, r := range records {
		if r.PrevHash != prev {
			return i, fmt.Errorf("record %d: prevHash %q does not match preceding hash %q", i, r.PrevHash, prev)
		}
		want, err := contentHash(r)
		if err != nil {
			return i, err
		}
		if r.ContentHash != want || r.ID != want {
			return i, fmt.Errorf("record %d: contentHash mismatch, record has been altered", i)
		}
		prev = r.ContentHash
	}
	return -1, nil
}

// VerifySigned is Verify plus, for each record, a check that Signature is
// a valid HMAC over its (ContentHash, PrevHash) pair under hmacKey.
func VerifySigned(records []Record, hmacKey []byte) (brokenAt int, err error) {
	if brokenAt, err = Verify(records); err != nil {
		return brokenAt, err
	}
	for i, r := range records {
		ok, err := logging.VerifySignature(signaturePayload{ContentHash: r.ContentHash, PrevHash: r.PrevHash}, r.Signature, hmacKey)
		if err != nil {
			return i, fmt.Errorf("record %d: computing expected signature: %w", i, err)
		}
		if !ok {
			return i, fmt.Errorf("record %d: signature mismatch, record has been altered or was not signed by this key", i)
		}
	}
	return -1, nil
}
