package checkin

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/dotside-studios/checkin-agent/nfc"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(io.Discard, "", 0)
}

// fakeReader hands out a single mock session, or fails.
type fakeReader struct {
	session *nfc.MockSession
	err     error
	calls   int
}

func (r *fakeReader) OpenSession(ctx context.Context) (nfc.Session, error) {
	r.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.session, nil
}

// fakeAPI records calls and plays back canned responses.
type fakeAPI struct {
	user     *UserWithTags
	getErr   error
	result   *CheckInResult
	checkErr error

	getCalls    int
	checkCalls  int
	lastID      string
	lastTag     string
	lastCheckin bool
}

func (a *fakeAPI) GetUser(ctx context.Context, id string) (*UserWithTags, error) {
	a.getCalls++
	a.lastID = id
	if a.getErr != nil {
		return nil, a.getErr
	}
	return a.user, nil
}

func (a *fakeAPI) CheckInTag(ctx context.Context, id, tag string, checkin bool) (*CheckInResult, error) {
	a.checkCalls++
	a.lastID = id
	a.lastTag = tag
	a.lastCheckin = checkin
	if a.checkErr != nil {
		return nil, a.checkErr
	}
	return a.result, nil
}

func attendee(id string, checkedIn bool, tag string) *UserWithTags {
	u := &UserWithTags{
		UserRecord: UserRecord{
			ID:        id,
			Name:      "Ada Lovelace",
			Email:     "ada@example.com",
			Applied:   true,
			Accepted:  true,
			Confirmed: true,
		},
	}
	if tag != "" {
		u.Tags = []TagState{{Tag: TagRef{Name: tag}, CheckedIn: checkedIn, CheckinSuccess: true}}
	}
	return u
}

func mutationResult(u *UserWithTags, tag string, checkedIn, success bool) *CheckInResult {
	return &CheckInResult{
		User: u.UserRecord,
		Tags: []TagState{{Tag: TagRef{Name: tag}, CheckedIn: checkedIn, CheckinSuccess: success}},
	}
}

func badgeSession(id string) *nfc.MockSession {
	return &nfc.MockSession{
		TagUID: "04a1b2c3",
		Memory: nfc.EncodeTextRecord(id, "en"),
	}
}

func newTestOrchestrator(t *testing.T, reader BadgeReader, api API, opts OrchestratorOptions) *Orchestrator {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger(t)
	}
	return NewOrchestrator(reader, api, opts)
}

func TestProcessCompletes(t *testing.T) {
	user := attendee("user-1", false, "")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, result: mutationResult(user, "dinner", true, true)}

	var states []State
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{
		OnState: func(s State) { states = append(states, s) },
	})

	outcome, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Errorf("status = %v, want %v", outcome.Status, OutcomeCompleted)
	}
	if outcome.User.ID != "user-1" {
		t.Errorf("outcome user = %q, want user-1", outcome.User.ID)
	}
	if !outcome.Tag.CheckedIn {
		t.Error("outcome tag should be checked in")
	}
	if api.lastID != "user-1" || api.lastTag != "dinner" || !api.lastCheckin {
		t.Errorf("mutation called with (%q, %q, %t)", api.lastID, api.lastTag, api.lastCheckin)
	}
	if reader.session.CloseCount() != 1 {
		t.Errorf("session closed %d times, want 1", reader.session.CloseCount())
	}

	want := []State{StateReading, StateDecoding, StateResolving, StateSubmitting, StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("state transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestProcessAlreadyInState(t *testing.T) {
	user := attendee("user-1", true, "dinner")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, result: mutationResult(user, "dinner", true, false)}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	outcome, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if err != nil {
		t.Fatalf("already-in-state must be an outcome, got error: %v", err)
	}
	if outcome.Status != OutcomeAlreadyInState {
		t.Errorf("status = %v, want %v", outcome.Status, OutcomeAlreadyInState)
	}
	if reader.session.CloseCount() != 1 {
		t.Errorf("session closed %d times, want 1", reader.session.CloseCount())
	}
}

func TestProcessRejectedFlip(t *testing.T) {
	// checkin_success=false while the tag was NOT already in the requested
	// state is a genuine rejection, not a duplicate tap.
	user := attendee("user-1", false, "dinner")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, result: mutationResult(user, "dinner", false, false)}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsCheckInRejected(err) {
		t.Fatalf("want check-in rejected, got %v", err)
	}
}

func TestProcessUnknownUser(t *testing.T) {
	reader := &fakeReader{session: badgeSession("ghost")}
	api := &fakeAPI{getErr: newError(ErrUnknownUser, "UserGet", `no user with id "ghost"`, nil)}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsUnknownUser(err) {
		t.Fatalf("want unknown user, got %v", err)
	}
	if api.checkCalls != 0 {
		t.Errorf("mutation attempted %d times for unknown user", api.checkCalls)
	}
}

func TestProcessMalformedBadge(t *testing.T) {
	reader := &fakeReader{session: &nfc.MockSession{Memory: []byte{0xDE, 0xAD, 0xBE, 0xEF}}}
	api := &fakeAPI{}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsMalformedTag(err) {
		t.Fatalf("want malformed tag, got %v", err)
	}
	if api.getCalls != 0 || api.checkCalls != 0 {
		t.Error("malformed badge must not reach the service")
	}
	if reader.session.CloseCount() != 1 {
		t.Errorf("session closed %d times, want 1", reader.session.CloseCount())
	}
}

func TestProcessIneligibleUser(t *testing.T) {
	user := attendee("user-1", false, "")
	user.Confirmed = false
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsCheckInRejected(err) {
		t.Fatalf("want check-in rejected, got %v", err)
	}
	if api.checkCalls != 0 {
		t.Error("mutation must not be attempted for an unconfirmed user")
	}
}

func TestProcessReadTimeoutReleasesSession(t *testing.T) {
	session := badgeSession("user-1")
	session.ReadDelay = 500 * time.Millisecond
	reader := &fakeReader{session: session}
	api := &fakeAPI{}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{ReadTimeout: 30 * time.Millisecond})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsTimeout(err) {
		t.Fatalf("want timeout, got %v", err)
	}
	if session.CloseCount() != 1 {
		t.Errorf("session closed %d times after timeout, want 1", session.CloseCount())
	}
	if api.getCalls != 0 {
		t.Error("timed-out read must not reach the service")
	}
}

func TestProcessCancellation(t *testing.T) {
	session := badgeSession("user-1")
	session.ReadDelay = time.Second
	reader := &fakeReader{session: session}
	o := newTestOrchestrator(t, reader, &fakeAPI{}, OrchestratorOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := o.Process(ctx, ScanRequest{Tag: "dinner", Checkin: true})
	if !IsCancelled(err) {
		t.Fatalf("want cancelled, got %v", err)
	}
	if session.CloseCount() != 1 {
		t.Errorf("session closed %d times after cancellation, want 1", session.CloseCount())
	}
}

func TestProcessTransportErrorSingleAttempt(t *testing.T) {
	user := attendee("user-1", false, "")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, checkErr: errors.New("connection reset by peer")}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsTransportError(err) {
		t.Fatalf("want transport error, got %v", err)
	}
	if api.checkCalls != 1 {
		t.Errorf("mutation attempted %d times, want exactly 1", api.checkCalls)
	}
}

func TestProcessMutationGraphQLErrorIsRejection(t *testing.T) {
	user := attendee("user-1", false, "")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, checkErr: &GraphQLError{Messages: []string{"tag is closed"}}}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsCheckInRejected(err) {
		t.Fatalf("want check-in rejected, got %v", err)
	}
}

func TestProcessReaderFailure(t *testing.T) {
	reader := &fakeReader{err: nfc.NewTransceiveError("OpenSession", errors.New("sharing violation"))}
	api := &fakeAPI{}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsReaderError(err) {
		t.Fatalf("want reader error, got %v", err)
	}
}

func TestProcessEmptyTagName(t *testing.T) {
	reader := &fakeReader{session: badgeSession("user-1")}
	o := newTestOrchestrator(t, reader, &fakeAPI{}, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "  ", Checkin: true})
	if !IsInvalidParameters(err) {
		t.Fatalf("want invalid parameters, got %v", err)
	}
	if reader.calls != 0 {
		t.Error("reader must not be opened for an invalid request")
	}
}

func TestProcessResultMissingTagState(t *testing.T) {
	user := attendee("user-1", false, "")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, result: &CheckInResult{User: user.UserRecord}}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	_, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: true})
	if !IsTransportError(err) {
		t.Fatalf("want transport error for missing tag state, got %v", err)
	}
}

func TestProcessCheckOut(t *testing.T) {
	user := attendee("user-1", true, "dinner")
	reader := &fakeReader{session: badgeSession("user-1")}
	api := &fakeAPI{user: user, result: mutationResult(user, "dinner", false, true)}
	o := newTestOrchestrator(t, reader, api, OrchestratorOptions{})

	outcome, err := o.Process(context.Background(), ScanRequest{Tag: "dinner", Checkin: false})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Errorf("status = %v, want %v", outcome.Status, OutcomeCompleted)
	}
	if api.lastCheckin {
		t.Error("mutation should have been called with checkin=false")
	}
}
