package checkin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dotside-studios/checkin-agent/nfc"
)

// State is the orchestrator's position in the scan lifecycle.
type State int

const (
	StateIdle State = iota
	StateReading
	StateDecoding
	StateResolving
	StateSubmitting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDecoding:
		return "decoding"
	case StateResolving:
		return "resolving"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OutcomeStatus distinguishes the two ways a scan can succeed.
type OutcomeStatus int

const (
	// OutcomeCompleted: the mutation changed the tag state as requested.
	OutcomeCompleted OutcomeStatus = iota + 1

	// OutcomeAlreadyInState: the tag was already in the requested state. The
	// scan is a success, but the operator should be told (often a double tap,
	// sometimes a badge that was passed around).
	OutcomeAlreadyInState
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAlreadyInState:
		return "already in state"
	default:
		return "unknown"
	}
}

// Outcome is the result of a successful scan.
type Outcome struct {
	Status OutcomeStatus
	User   UserRecord
	Tag    TagState
}

// ScanRequest names the tag to check into (or out of) on the next badge.
type ScanRequest struct {
	Tag     string
	Checkin bool
}

// BadgeReader acquires an exclusive session for one badge presentation.
// Satisfied by *nfc.Reader.
type BadgeReader interface {
	OpenSession(ctx context.Context) (nfc.Session, error)
}

// API is the slice of the service the orchestrator needs. Satisfied by *Client.
type API interface {
	GetUser(ctx context.Context, id string) (*UserWithTags, error)
	CheckInTag(ctx context.Context, id, tag string, checkin bool) (*CheckInResult, error)
}

// Default per-phase deadlines. Reading covers the wait for a badge to be
// presented, so it is the long one.
const (
	DefaultReadTimeout   = 60 * time.Second
	DefaultSubmitTimeout = 10 * time.Second
)

// OrchestratorOptions tune a new Orchestrator. Zero values take defaults.
type OrchestratorOptions struct {
	ReadTimeout   time.Duration
	SubmitTimeout time.Duration
	Logger        *log.Logger

	// OnState is called on every state transition, from the scanning
	// goroutine. Used to drive UI/status broadcasts; must not block.
	OnState func(State)
}

// Orchestrator drives one badge scan at a time through the read, decode,
// resolve, and submit phases. The reader session is held exclusively for the
// duration of a scan and released on every exit path.
type Orchestrator struct {
	reader        BadgeReader
	api           API
	logger        *log.Logger
	readTimeout   time.Duration
	submitTimeout time.Duration
	onState       func(State)

	runMu sync.Mutex // serializes scans

	stateMu sync.Mutex
	state   State
}

// NewOrchestrator wires a reader and an API client into an orchestrator.
func NewOrchestrator(reader BadgeReader, api API, opts OrchestratorOptions) *Orchestrator {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Orchestrator{
		reader:        reader,
		api:           api,
		logger:        opts.Logger,
		readTimeout:   opts.ReadTimeout,
		submitTimeout: opts.SubmitTimeout,
		onState:       opts.OnState,
		state:         StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
	if o.onState != nil {
		o.onState(s)
	}
}

// Process runs one scan: wait for a badge, read and decode it, resolve the
// user, and submit the check-in mutation. It returns an Outcome on success,
// including the already-in-state case, and a *Error otherwise.
//
// The mutation is attempted at most once. A transport failure after
// submission leaves the service state unknown; it is reported, never retried.
func (o *Orchestrator) Process(ctx context.Context, req ScanRequest) (*Outcome, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	defer func() {
		if o.State() != StateFailed && o.State() != StateCompleted {
			o.setState(StateIdle)
		}
	}()

	if strings.TrimSpace(req.Tag) == "" {
		return nil, o.fail(newError(ErrInvalidParameters, "Process", "tag name must not be empty", nil))
	}

	// Reading: acquire the badge session and pull the NDEF memory area.
	o.setState(StateReading)
	readCtx, cancelRead := context.WithTimeout(ctx, o.readTimeout)
	defer cancelRead()

	session, err := o.reader.OpenSession(readCtx)
	if err != nil {
		return nil, o.fail(o.classifyReaderErr(ctx, err, "open session"))
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Printf("scan: closing badge session: %v", err)
		}
	}()

	raw, err := session.ReadTagMemory(readCtx)
	if err != nil {
		return nil, o.fail(o.classifyReaderErr(ctx, err, "read tag memory"))
	}
	cancelRead()

	// Best effort; not every reader has a buzzer.
	if err := session.Beep(true); err != nil && nfc.GetErrorCode(err) != nfc.ErrCodeNotSupported {
		o.logger.Printf("scan: beep failed: %v", err)
	}

	// Decoding is local and cannot block.
	o.setState(StateDecoding)
	id, err := nfc.DecodeBadgeIdentifier(raw)
	if err != nil {
		o.logger.Printf("scan: badge %s undecodable: %v", session.UID(), err)
		return nil, o.fail(newError(ErrMalformedTag, "Decode", "badge carries no usable identifier", err))
	}

	// Resolving: fetch the user and capture the tag state as it was before
	// the mutation. A user with no state for the tag reads as checked out.
	o.setState(StateResolving)
	resolveCtx, cancelResolve := context.WithTimeout(ctx, o.submitTimeout)
	defer cancelResolve()

	user, err := o.api.GetUser(resolveCtx, id)
	if err != nil {
		return nil, o.fail(o.classifyAPIErr(ctx, err, "UserGet", ErrTransport))
	}
	priorCheckedIn := false
	if prior, ok := user.TagStateFor(req.Tag); ok {
		priorCheckedIn = prior.CheckedIn
	}

	if !user.Accepted || !user.Confirmed {
		return nil, o.fail(newError(ErrCheckInRejected, "UserGet",
			fmt.Sprintf("%s has not confirmed attendance", user.Name), nil))
	}

	// Submitting: one attempt, no retry.
	o.setState(StateSubmitting)
	submitCtx, cancelSubmit := context.WithTimeout(ctx, o.submitTimeout)
	defer cancelSubmit()

	result, err := o.api.CheckInTag(submitCtx, id, req.Tag, req.Checkin)
	if err != nil {
		return nil, o.fail(o.classifyAPIErr(ctx, err, "CheckInTag", ErrCheckInRejected))
	}

	tagState, ok := result.TagStateFor(req.Tag)
	if !ok {
		return nil, o.fail(newError(ErrTransport, "CheckInTag",
			fmt.Sprintf("response carried no state for tag %q", req.Tag), nil))
	}

	outcome := &Outcome{User: result.User, Tag: tagState}
	switch {
	case tagState.CheckinSuccess:
		outcome.Status = OutcomeCompleted
	case priorCheckedIn == req.Checkin:
		// The service refused the flip because there was nothing to flip.
		outcome.Status = OutcomeAlreadyInState
	default:
		return nil, o.fail(newError(ErrCheckInRejected, "CheckInTag",
			fmt.Sprintf("service refused to set %q to checked_in=%t for %s", req.Tag, req.Checkin, result.User.Name), nil))
	}

	o.setState(StateCompleted)
	o.logger.Printf("scan: %s %s for %s (%s)", outcome.Status, req.Tag, result.User.Name, result.User.Email)
	return outcome, nil
}

func (o *Orchestrator) fail(err *Error) *Error {
	o.setState(StateFailed)
	o.logger.Printf("scan: failed in %s: %v", err.Op, err)
	return err
}

// classifyReaderErr maps a read-phase failure onto the error taxonomy.
// Deadline expiry of the phase is a timeout; expiry of the caller's context
// is a cancellation.
func (o *Orchestrator) classifyReaderErr(parent context.Context, err error, action string) *Error {
	if c := contextCode(parent, err); c != 0 {
		return newError(c, "Read", action, err)
	}
	return newError(ErrReader, "Read", action, err)
}

// classifyAPIErr maps a resolve- or submit-phase failure onto the taxonomy.
// Service-level errors become gqlCode (rejection for the mutation, transport
// for queries); errors already carrying a code pass through.
func (o *Orchestrator) classifyAPIErr(parent context.Context, err error, op string, gqlCode Code) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if c := contextCode(parent, err); c != 0 {
		return newError(c, op, "request interrupted", err)
	}
	var ge *GraphQLError
	if errors.As(err, &ge) {
		return newError(gqlCode, op, strings.Join(ge.Messages, "; "), ge)
	}
	return newError(ErrTransport, op, "request failed", err)
}

// contextCode distinguishes cancellation from timeout. The caller's context
// being done means the scan was cancelled, regardless of which deadline
// tripped first.
func contextCode(parent context.Context, err error) Code {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return ErrCancelled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return ErrTimeout
	}
	return 0
}
