// Package canon is the single gate for canonical invariant checks. The check
// functions are unexported and the registry cannot be extended from outside,
// so a Seal can only come from Registry.CheckCanon.
package canon

import (
	"errors"
	"fmt"
	"sort"

	"mgcore/pkg/platform/canonical"
)

// Kind selects which canonical check applies to a payload.
type Kind string

const (
	KindMCSnapshot        Kind = "mc_snapshot"
	KindMCTransition      Kind = "mc_transition"
	KindAuctionState      Kind = "auction_state"
	KindGovernanceContext Kind = "governance_context"
	KindGMCRecognition    Kind = "gmc_recognition"
)

// Violation codes shared across checks.
const (
	CodeUnknownKind    = "UNKNOWN_CANON_KIND"
	CodeInvalidPayload = "INVALID_PAYLOAD"
)

var (
	// ErrCanonViolation matches every *Violation via errors.Is.
	ErrCanonViolation = errors.New("canon violation")
	// ErrUnknownCanonKind matches a violation raised for an unregistered kind.
	ErrUnknownCanonKind = errors.New("unknown canon kind")
)

// Violation is a structural consistency failure. Callers must treat it as a
// hard stop.
type Violation struct {
	Kind        Kind
	Code        string
	InvariantID string
	Message     string
}

func (v *Violation) Error() string {
	if v.InvariantID != "" {
		return fmt.Sprintf("canon %s: [%s] %s: %s", v.Kind, v.InvariantID, v.Code, v.Message)
	}
	return fmt.Sprintf("canon %s: %s: %s", v.Kind, v.Code, v.Message)
}

func (v *Violation) Is(target error) bool {
	switch target {
	case ErrCanonViolation:
		return true
	case ErrUnknownCanonKind:
		return v.Code == CodeUnknownKind
	}
	return false
}

// Seal proves that a payload passed a canonical check. Its fields are
// unexported, so the zero value is the only Seal other packages can build.
type Seal struct {
	kind   Kind
	digest string
}

// Canonical reports whether the seal was issued by a registry check.
func (s Seal) Canonical() bool { return s.kind != "" && s.digest != "" }

// Kind returns the kind that was checked.
func (s Seal) Kind() Kind { return s.kind }

// Digest is the SHA-256 of the canonical form of the checked payload.
func (s Seal) Digest() string { return s.digest }

type check func(payload any) *Violation

// Registry dispatches a kind to its check.
type Registry struct {
	checks map[Kind]check
}

// NewRegistry returns a registry holding every canonical check.
func NewRegistry() *Registry {
	return &Registry{checks: map[Kind]check{
		KindMCSnapshot:        checkMCSnapshot,
		KindMCTransition:      checkMCTransition,
		KindAuctionState:      checkAuctionState,
		KindGovernanceContext: checkGovernanceContext,
		KindGMCRecognition:    checkGMCRecognition,
	}}
}

// CheckCanon runs the check registered for kind against payload.
func (r *Registry) CheckCanon(kind Kind, payload any) (Seal, error) {
	fn, ok := r.checks[kind]
	if !ok {
		return Seal{}, &Violation{
			Kind:    kind,
			Code:    CodeUnknownKind,
			Message: fmt.Sprintf("no canonical check registered for %q", kind),
		}
	}
	if v := fn(payload); v != nil {
		v.Kind = kind
		return Seal{}, v
	}
	digest, err := canonical.Hash(payload)
	if err != nil {
		return Seal{}, &Violation{Kind: kind, Code: CodeInvalidPayload, Message: err.Error()}
	}
	return Seal{kind: kind, digest: digest}, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.checks))
	for k := range r.checks {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func invalidPayload(want string, got any) *Violation {
	return &Violation{Code: CodeInvalidPayload, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}
