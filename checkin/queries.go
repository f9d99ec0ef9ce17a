package checkin

import "strings"

// The service schema is fixed: exactly these documents, parameter names and
// response fields are what the deployed instance accepts. They are kept as
// literal text rather than built through a GraphQL library so the closed set
// of operations stays exhaustively checkable.

const userFragment = `fragment UserData on User {
	id
	name
	email
	applied
	accepted
	confirmed
	confirmationBranch
	application { type }
	confirmation { type }
	questions(names: ["major", "school", "tshirt-size", "dietary-restrictions", "optional-items"]) {
		name
		value
	}
}`

const tagFragment = `fragment TagData on TagState {
	tag { name }
	checked_in
	checkin_success
	last_successful_checkin {
		checked_in_date
		checked_in_by
	}
}`

const userSearchDocument = `query UserSearch($search: String!, $n: Int!) {
	search_user_simple(search: $search, offset: 0, n: $n, filter: { confirmed: true, accepted: true }) {
		...UserData
	}
}
` + userFragment

const userGetDocument = `query UserGet($id: ID!) {
	user(id: $id) {
		...UserData
		tags {
			...TagData
		}
	}
}
` + userFragment + "\n" + tagFragment

const tagsGetDocument = `query TagsGet($only_current: Boolean!) {
	tags(only_current: $only_current) {
		name
	}
}`

const checkInTagDocument = `mutation CheckInTag($id: ID!, $tag: String!, $checkin: Boolean!) {
	check_in(user: $id, tag: $tag, checkin: $checkin) {
		user {
			...UserData
		}
		tags {
			...TagData
		}
	}
}
` + userFragment + "\n" + tagFragment

// Operation is one of the four service operations. Variables validates its
// parameters and fails with an invalid-parameters error before any I/O.
type Operation interface {
	OperationName() string
	Document() string
	Variables() (map[string]interface{}, error)
}

// UserSearch finds confirmed+accepted attendees by free text.
type UserSearch struct {
	Text  string
	Limit int
}

func (UserSearch) OperationName() string { return "UserSearch" }
func (UserSearch) Document() string      { return userSearchDocument }

func (q UserSearch) Variables() (map[string]interface{}, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, newError(ErrInvalidParameters, "UserSearch", "search text must not be empty", nil)
	}
	if q.Limit <= 0 {
		return nil, newError(ErrInvalidParameters, "UserSearch", "limit must be a positive integer", nil)
	}
	return map[string]interface{}{
		"search": q.Text,
		"n":      q.Limit,
	}, nil
}

// UserGet fetches one attendee with all of their tag states.
type UserGet struct {
	ID string
}

func (UserGet) OperationName() string { return "UserGet" }
func (UserGet) Document() string      { return userGetDocument }

func (q UserGet) Variables() (map[string]interface{}, error) {
	if strings.TrimSpace(q.ID) == "" {
		return nil, newError(ErrInvalidParameters, "UserGet", "user id must not be empty", nil)
	}
	return map[string]interface{}{"id": q.ID}, nil
}

// TagsGet lists tag names, optionally only currently active ones.
type TagsGet struct {
	OnlyCurrent bool
}

func (TagsGet) OperationName() string { return "TagsGet" }
func (TagsGet) Document() string      { return tagsGetDocument }

func (q TagsGet) Variables() (map[string]interface{}, error) {
	return map[string]interface{}{"only_current": q.OnlyCurrent}, nil
}

// CheckInTag checks a user into (Checkin=true) or out of (Checkin=false) a tag.
type CheckInTag struct {
	ID      string
	Tag     string
	Checkin bool
}

func (CheckInTag) OperationName() string { return "CheckInTag" }
func (CheckInTag) Document() string      { return checkInTagDocument }

func (q CheckInTag) Variables() (map[string]interface{}, error) {
	if strings.TrimSpace(q.ID) == "" {
		return nil, newError(ErrInvalidParameters, "CheckInTag", "user id must not be empty", nil)
	}
	if strings.TrimSpace(q.Tag) == "" {
		return nil, newError(ErrInvalidParameters, "CheckInTag", "tag name must not be empty", nil)
	}
	return map[string]interface{}{
		"id":      q.ID,
		"tag":     q.Tag,
		"checkin": q.Checkin,
	}, nil
}

// Response data shapes, one per operation.

type userSearchData struct {
	Users []UserRecord `json:"search_user_simple"`
}

type userGetData struct {
	User *UserWithTags `json:"user"`
}

type tagsGetData struct {
	Tags []TagRef `json:"tags"`
}

type checkInData struct {
	CheckIn *CheckInResult `json:"check_in"`
}
