// Package sessionctl drives the conversation lifecycle on the client: ask for
// the microphone, resolve a fresh signed URL, open the realtime session, and
// fold provider callbacks back into one state machine. All conversation state
// lives in a Controller instance; there is no package-level state.
package sessionctl

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/falavox/falavox/internal/convai"
	"github.com/falavox/falavox/internal/resolver"
)

// State is the controller's lifecycle position.
type State string

const (
	StateIdle                State = "idle"
	StatePermissionRequested State = "permission_requested"
	StatePermissionDenied    State = "permission_denied"
	StateResolvingSession    State = "resolving_session"
	StateSessionActive       State = "session_active"
	StateDisconnected        State = "disconnected"
)

// Transition is delivered to the observer on every state or mode change.
// AttemptID ties transitions of one conversation attempt together. Mode is
// meaningful only while State is StateSessionActive.
type Transition struct {
	State     State
	Mode      convai.Mode
	AttemptID string
	Reason    string
}

// Observer receives transitions in the order they are applied. It runs with
// the controller lock held and must not call back into the controller.
type Observer func(Transition)

// PermissionFunc asks the user for microphone access. It may block until the
// user answers the prompt.
type PermissionFunc func(ctx context.Context) (bool, error)

// ViewResolver fetches the persona view, including a fresh signed URL, for a
// slug. Called once per attempt, inside Start, never at load time: signed URLs
// are short-lived and must not be reused across attempts.
type ViewResolver interface {
	FetchView(ctx context.Context, slug string) (resolver.View, error)
}

// Session is one live conversation, as produced by the dialer.
type Session interface {
	End() error
}

// Dialer opens a realtime session against a signed URL.
type Dialer func(ctx context.Context, signedURL string, callbacks convai.Callbacks) (Session, error)

type Controller struct {
	slug       string
	permission PermissionFunc
	resolver   ViewResolver
	dial       Dialer
	observer   Observer

	mu        sync.Mutex
	state     State
	mode      convai.Mode
	gen       uint64
	attemptID string
	cancel    context.CancelFunc
	session   Session
}

func New(slug string, permission PermissionFunc, res ViewResolver, dial Dialer, observer Observer) *Controller {
	return &Controller{
		slug:       slug,
		permission: permission,
		resolver:   res,
		dial:       dial,
		observer:   observer,
		state:      StateIdle,
		mode:       convai.ModeListening,
	}
}

// State returns the current lifecycle state and speaking sub-state.
func (c *Controller) State() (State, convai.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.mode
}

// Start begins a conversation attempt. It returns immediately; permission and
// network acquisition run in the background. Calling Start while an attempt is
// in flight or a session is active is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return
	}

	c.gen++
	gen := c.gen
	c.attemptID = uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setLocked(StatePermissionRequested, "")

	go c.runAttempt(ctx, gen)
}

// End tears down the current attempt or session. Calling End when idle is a
// no-op. End returns immediately; socket shutdown completes in the background.
func (c *Controller) End() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}

	// Invalidate any in-flight work so late results from this attempt are
	// discarded.
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	sess := c.session
	c.session = nil
	if c.state == StateSessionActive {
		c.setLocked(StateDisconnected, "user end")
	}
	c.setLocked(StateIdle, "")
	c.mu.Unlock()

	if sess != nil {
		go func() { _ = sess.End() }()
	}
}

func (c *Controller) runAttempt(ctx context.Context, gen uint64) {
	granted, err := c.permission(ctx)
	if err != nil || !granted {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			return
		}
		reason := "microphone permission denied"
		if err != nil {
			reason = "microphone permission failed: " + err.Error()
		}
		c.setLocked(StatePermissionDenied, reason)
		c.finishAttemptLocked()
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.setLocked(StateResolvingSession, "")
	c.mu.Unlock()

	view, err := c.resolver.FetchView(ctx, c.slug)
	if err != nil {
		c.failAttempt(gen, "resolve failed: "+err.Error())
		return
	}

	sess, err := c.dial(ctx, view.SignedURL, convai.Callbacks{
		OnDisconnect: func() { c.onDisconnect(gen) },
		OnError:      func(err error) { c.onSessionError(gen, err) },
		OnModeChange: func(mode convai.Mode) { c.onModeChange(gen, mode) },
	})
	if err != nil {
		c.failAttempt(gen, "session start failed: "+err.Error())
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		// A newer Start or End superseded this attempt while dialing; the
		// freshly opened session must not leak.
		_ = sess.End()
		return
	}
	c.session = sess
	c.mode = convai.ModeListening
	c.setLocked(StateSessionActive, "")
	c.mu.Unlock()
}

func (c *Controller) failAttempt(gen uint64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.gen++
	c.state = StateIdle
	c.emitLocked(Transition{State: StateIdle, AttemptID: c.attemptID, Reason: reason})
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) onDisconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	// Invalidate the attempt: if the dial is still unwinding, its late
	// success must not resurrect a session the provider already closed.
	c.gen++
	c.session = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mode = convai.ModeListening
	c.setLocked(StateDisconnected, "provider disconnect")
	c.setLocked(StateIdle, "")
}

func (c *Controller) onSessionError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	// Protocol errors are surfaced but do not change state; the provider
	// disconnect that usually follows drives the teardown.
	c.emitLocked(Transition{State: c.state, Mode: c.mode, AttemptID: c.attemptID, Reason: "conversation error: " + err.Error()})
}

func (c *Controller) onModeChange(gen uint64, mode convai.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateSessionActive {
		return
	}
	if c.mode == mode {
		return
	}
	c.mode = mode
	c.emitLocked(Transition{State: c.state, Mode: mode, AttemptID: c.attemptID})
}

// finishAttemptLocked returns to Idle after a failed attempt.
func (c *Controller) finishAttemptLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.setLocked(StateIdle, "")
}

func (c *Controller) setLocked(state State, reason string) {
	c.state = state
	if state != StateSessionActive {
		c.mode = convai.ModeListening
	}
	c.emitLocked(Transition{State: state, Mode: c.mode, AttemptID: c.attemptID, Reason: reason})
}

func (c *Controller) emitLocked(tr Transition) {
	if c.observer != nil {
		c.observer(tr)
	}
}
