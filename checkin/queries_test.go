package checkin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestOperationVariables(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want map[string]interface{}
	}{
		{
			name: "user search",
			op:   UserSearch{Text: "ada", Limit: 5},
			want: map[string]interface{}{"search": "ada", "n": 5},
		},
		{
			name: "user get",
			op:   UserGet{ID: "user-1"},
			want: map[string]interface{}{"id": "user-1"},
		},
		{
			name: "tags get",
			op:   TagsGet{OnlyCurrent: true},
			want: map[string]interface{}{"only_current": true},
		},
		{
			name: "check in",
			op:   CheckInTag{ID: "user-1", Tag: "dinner", Checkin: true},
			want: map[string]interface{}{"id": "user-1", "tag": "dinner", "checkin": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op.Variables()
			if err != nil {
				t.Fatalf("Variables failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("variables = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("variables[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestOperationValidation(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
	}{
		{"empty search text", UserSearch{Text: "   ", Limit: 5}},
		{"zero search limit", UserSearch{Text: "ada", Limit: 0}},
		{"negative search limit", UserSearch{Text: "ada", Limit: -3}},
		{"empty user id", UserGet{ID: ""}},
		{"blank user id", UserGet{ID: " \t"}},
		{"check in without id", CheckInTag{Tag: "dinner", Checkin: true}},
		{"check in without tag", CheckInTag{ID: "user-1", Checkin: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op.Variables()
			if !IsInvalidParameters(err) {
				t.Errorf("want invalid parameters, got %v", err)
			}
		})
	}
}

// The service schema names its parameters in snake_case in places; the
// documents must match it exactly.
func TestDocumentsNameSchemaFields(t *testing.T) {
	tests := []struct {
		name     string
		document string
		contains []string
	}{
		{
			name:     "user search",
			document: UserSearch{}.Document(),
			contains: []string{"search_user_simple", "offset: 0", "confirmed: true", "accepted: true"},
		},
		{
			name:     "user get",
			document: UserGet{}.Document(),
			contains: []string{"user(id: $id)", "checked_in", "checkin_success", "last_successful_checkin"},
		},
		{
			name:     "tags get",
			document: TagsGet{}.Document(),
			contains: []string{"tags(only_current: $only_current)"},
		},
		{
			name:     "check in",
			document: CheckInTag{}.Document(),
			contains: []string{"check_in(user: $id, tag: $tag, checkin: $checkin)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.contains {
				if !strings.Contains(tt.document, want) {
					t.Errorf("document does not mention %q", want)
				}
			}
		})
	}
}

// failingTransport fails the test if any operation reaches it.
type failingTransport struct {
	t *testing.T
}

func (f *failingTransport) Execute(ctx context.Context, document string, variables map[string]interface{}) (json.RawMessage, error) {
	f.t.Fatal("transport reached despite invalid parameters")
	return nil, nil
}

func TestValidationHappensBeforeTransport(t *testing.T) {
	client := NewClient(&failingTransport{t})

	if _, err := client.SearchUsers(t.Context(), "", 10); !IsInvalidParameters(err) {
		t.Errorf("SearchUsers: want invalid parameters, got %v", err)
	}
	if _, err := client.GetUser(t.Context(), ""); !IsInvalidParameters(err) {
		t.Errorf("GetUser: want invalid parameters, got %v", err)
	}
	if _, err := client.CheckInTag(t.Context(), "user-1", "", true); !IsInvalidParameters(err) {
		t.Errorf("CheckInTag: want invalid parameters, got %v", err)
	}
}
