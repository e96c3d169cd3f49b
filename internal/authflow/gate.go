// Package authflow owns the correlation between an authentication attempt
// and the redirect that eventually completes it. The redirect can arrive
// through several independent channels (deep-link event, webview navigation
// observer, initial-URL check at startup), zero or more times each; the gate
// guarantees the single pending attempt settles exactly once.
package authflow

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/abuzaid911/uaepass-front/internal/crypto"
	"github.com/abuzaid911/uaepass-front/internal/idp"
	"github.com/abuzaid911/uaepass-front/internal/log"
)

// DefaultAttemptTTL bounds how long an attempt may stay pending.
const DefaultAttemptTTL = 5 * time.Minute

type outcome struct {
	code string
	err  *FlowError
}

// Attempt is one pending authentication attempt. It settles exactly once:
// resolved with an authorization code, or rejected with a FlowError.
type Attempt struct {
	State     string
	Method    idp.AuthMethod
	LoginHint string
	Deadline  time.Time

	done    chan outcome
	settled bool
	timer   *time.Timer
}

// Wait blocks until the attempt settles or ctx is done. On ctx expiry the
// attempt itself stays pending; callers cancel through the gate to settle it.
func (a *Attempt) Wait(ctx context.Context) (string, error) {
	select {
	case out := <-a.done:
		if out.err != nil {
			return "", out.err
		}
		return out.code, nil
	case <-ctx.Done():
		return "", NewFlowError(ErrCancelled, ctx.Err().Error())
	}
}

// Gate holds the single pending attempt and settles it from candidate
// callbacks. All mutation goes through one mutex; resolve and reject are
// mutually exclusive and idempotent.
type Gate struct {
	mu      sync.Mutex
	pending *Attempt
	ttl     time.Duration
}

// NewGate creates a gate. ttl <= 0 selects DefaultAttemptTTL.
func NewGate(ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	return &Gate{ttl: ttl}
}

// BeginAttempt rejects any prior pending attempt as superseded, then creates
// and arms a fresh attempt with a new correlation token.
func (g *Gate) BeginAttempt(method idp.AuthMethod, loginHint string) (*Attempt, error) {
	if !method.Valid() {
		return nil, NewFlowError(ErrInitializationFailed, fmt.Sprintf("unknown auth method %q", method))
	}

	state, err := crypto.GenerateState()
	if err != nil {
		return nil, NewFlowError(ErrInitializationFailed, fmt.Sprintf("state generation failed: %v", err))
	}

	attempt := &Attempt{
		State:     state,
		Method:    method,
		LoginHint: loginHint,
		Deadline:  time.Now().Add(g.ttl),
		done:      make(chan outcome, 1),
	}

	g.mu.Lock()
	prior := g.pending
	if prior != nil {
		g.settleLocked(prior, outcome{err: NewFlowError(ErrSuperseded, "a newer authentication attempt was started")})
	}
	g.pending = attempt
	// Deadline fires even if no caller is waiting on the attempt
	attempt.timer = time.AfterFunc(g.ttl, func() { g.expire(attempt) })
	g.mu.Unlock()

	log.LogDebugWithFields("authflow", "Attempt started", map[string]any{
		"method":     string(method),
		"has_hint":   loginHint != "",
		"superseded": prior != nil,
	})

	return attempt, nil
}

// Offer considers a candidate redirect URL from any delivery channel.
// Malformed or foreign candidates are discarded silently: duplicate channel
// firings and stale redirects are expected and are not evidence the real
// attempt failed. A valid candidate resolves the pending attempt; a candidate
// carrying an explicit provider error rejects it.
func (g *Gate) Offer(candidateURL string) {
	u, err := url.Parse(candidateURL)
	if err != nil {
		log.LogDebug("Discarding unparsable callback candidate: %v", err)
		return
	}

	q := u.Query()
	code := q.Get("code")
	state := q.Get("state")
	errCode := q.Get("error")

	g.mu.Lock()
	defer g.mu.Unlock()

	pending := g.pending
	if pending == nil {
		log.LogDebug("Discarding callback candidate: no attempt pending")
		return
	}
	if state == "" || state != pending.State {
		// CSRF rejection of this candidate, not a failure of the attempt
		log.LogWarnWithFields("authflow", "Discarding callback candidate with mismatched state", map[string]any{
			"state_present": state != "",
		})
		return
	}

	if errCode != "" {
		g.settleLocked(pending, outcome{err: NewProviderError(errCode, q.Get("error_description"))})
		return
	}
	if code == "" {
		log.LogDebug("Discarding callback candidate without code")
		return
	}

	g.settleLocked(pending, outcome{code: code})
}

// Claim validates an already-extracted code/state pair against the pending
// attempt and settles it. Unlike Offer this is the direct entry style: a
// stale or mismatched candidate is a terminal InvalidState failure, because
// the caller asserts this candidate belongs to the current attempt.
func (g *Gate) Claim(code, state string) error {
	if code == "" {
		return NewFlowError(ErrInvalidState, "missing authorization code")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	pending := g.pending
	if pending == nil {
		return NewFlowError(ErrInvalidState, "no authentication attempt pending")
	}
	if state != pending.State {
		return NewFlowError(ErrInvalidState, "state parameter does not match pending attempt")
	}

	g.settleLocked(pending, outcome{code: code})
	return nil
}

// Cancel rejects the pending attempt, if any. Safe to call at any time,
// including after the attempt has already settled.
func (g *Gate) Cancel(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return
	}
	if reason == "" {
		reason = "authentication cancelled"
	}
	g.settleLocked(g.pending, outcome{err: NewFlowError(ErrCancelled, reason)})
}

// Pending reports whether an attempt is currently pending.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

func (g *Gate) expire(attempt *Attempt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settleLocked(attempt, outcome{err: NewFlowError(ErrTimeout, "authentication timed out")})
}

// settleLocked transitions an attempt out of PENDING exactly once. Calls for
// an already-settled attempt are no-ops. Callers hold g.mu.
func (g *Gate) settleLocked(attempt *Attempt, out outcome) {
	if attempt == nil || attempt.settled {
		return
	}
	attempt.settled = true
	if attempt.timer != nil {
		attempt.timer.Stop()
	}
	attempt.done <- out
	if g.pending == attempt {
		g.pending = nil
	}

	if out.err != nil {
		log.LogDebugWithFields("authflow", "Attempt rejected", map[string]any{
			"reason": string(out.err.Code),
		})
	} else {
		log.LogDebugWithFields("authflow", "Attempt resolved", map[string]any{
			"method": string(attempt.Method),
		})
	}
}
