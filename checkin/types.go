// Package checkin implements the client side of the event check-in service:
// a closed set of query/mutation operations, an HTTP transport for them, and
// the orchestrator that turns a badge scan into a check-in outcome.
package checkin

import "time"

// QuestionAnswer is one named registration question answer.
type QuestionAnswer struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BranchInfo carries the type of a registration branch.
type BranchInfo struct {
	Type string `json:"type"`
}

// UserRecord is a read-only snapshot of a service-side attendee.
type UserRecord struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Email              string           `json:"email"`
	Applied            bool             `json:"applied"`
	Accepted           bool             `json:"accepted"`
	Confirmed          bool             `json:"confirmed"`
	ConfirmationBranch string           `json:"confirmationBranch"`
	Application        *BranchInfo      `json:"application"`
	Confirmation       *BranchInfo      `json:"confirmation"`
	Questions          []QuestionAnswer `json:"questions"`
}

// Question returns the answer to a named registration question.
func (u *UserRecord) Question(name string) string {
	for _, q := range u.Questions {
		if q.Name == name {
			return q.Value
		}
	}
	return ""
}

// TagRef names a check-in tag (a checkpoint like "venue-entrance", not the
// NFC hardware).
type TagRef struct {
	Name string `json:"name"`
}

// CheckinEvent records when and by whom a successful check-in happened.
type CheckinEvent struct {
	Date time.Time `json:"checked_in_date"`
	By   string    `json:"checked_in_by"`
}

// TagState is the per-(user, tag) check-in status. It is created by the
// service on the first successful mutation and superseded, never deleted.
type TagState struct {
	Tag                   TagRef        `json:"tag"`
	CheckedIn             bool          `json:"checked_in"`
	CheckinSuccess        bool          `json:"checkin_success"`
	LastSuccessfulCheckin *CheckinEvent `json:"last_successful_checkin"`
}

// UserWithTags is a user snapshot together with all of their tag states,
// as returned by the UserGet operation.
type UserWithTags struct {
	UserRecord
	Tags []TagState `json:"tags"`
}

// TagStateFor returns the user's state for the named tag. A user who has
// never touched a tag has no state for it, which reads as checked out.
func (u *UserWithTags) TagStateFor(name string) (TagState, bool) {
	for _, ts := range u.Tags {
		if ts.Tag.Name == name {
			return ts, true
		}
	}
	return TagState{}, false
}

// CheckInResult is the refreshed user and tag states returned by the
// CheckInTag mutation.
type CheckInResult struct {
	User UserRecord `json:"user"`
	Tags []TagState `json:"tags"`
}

// TagStateFor returns the refreshed state for the named tag.
func (r *CheckInResult) TagStateFor(name string) (TagState, bool) {
	for _, ts := range r.Tags {
		if ts.Tag.Name == name {
			return ts, true
		}
	}
	return TagState{}, false
}
