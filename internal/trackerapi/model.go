package trackerapi

import (
	"fmt"
	"unicode/utf8"
)

// Status is the workflow state of an issue.
type Status string

// Valid status values.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
	StatusBacklog    Status = "backlog"
)

// Statuses lists all valid status values in display order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone, StatusBacklog}
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBacklog:
		return true
	}
	return false
}

// Label is the category of an issue.
type Label string

// Valid label values.
const (
	LabelBug           Label = "bug"
	LabelFeature       Label = "feature"
	LabelDocumentation Label = "documentation"
)

// Labels lists all valid label values in display order.
func Labels() []Label {
	return []Label{LabelBug, LabelFeature, LabelDocumentation}
}

// Valid reports whether l is one of the known label values.
func (l Label) Valid() bool {
	switch l {
	case LabelBug, LabelFeature, LabelDocumentation:
		return true
	}
	return false
}

// Issue is a persisted issue. ID is zero until the server assigns one.
// Author is the identity-provider user id of the reporter and never changes
// after creation; only the author may edit or delete the issue.
type Issue struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	Label       Label  `json:"label"`
	Author      string `json:"author"`
}

// NewIssue is the create/update payload: an issue without an id.
type NewIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	Label       Label  `json:"label"`
	Author      string `json:"author"`
}

// Payload returns the submission payload for an existing issue.
func (i Issue) Payload() NewIssue {
	return NewIssue{
		Title:       i.Title,
		Description: i.Description,
		Status:      i.Status,
		Label:       i.Label,
		Author:      i.Author,
	}
}

// User is the display projection of a tracker user: just enough to render an
// author cell. It is read-only from this client's perspective.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

// DisplayName returns the best available human-readable name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name != "" {
		return name
	}
	return u.ID
}

// FieldErrors maps a form field name to its validation message.
type FieldErrors map[string]string

// Field names used in FieldErrors.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldLabel       = "label"
	FieldAuthor      = "author"
)

// Validate checks the payload before submission. It returns nil when the
// payload is valid, otherwise a map with one message per offending field.
func (n NewIssue) Validate() FieldErrors {
	errs := make(FieldErrors)
	// Length limits count characters, not bytes, so multibyte input is
	// measured the way it reads.
	if utf8.RuneCountInString(n.Title) < 3 {
		errs[FieldTitle] = "title must be at least 3 characters."
	}
	if utf8.RuneCountInString(n.Description) < 5 {
		errs[FieldDescription] = "description must be at least 5 characters."
	}
	if !n.Status.Valid() {
		errs[FieldStatus] = "You need to select a status."
	}
	if !n.Label.Valid() {
		errs[FieldLabel] = "You need to select a label."
	}
	if n.Author == "" {
		errs[FieldAuthor] = "Author is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// APIError is a failure envelope returned by the tracker API
// ({"status":"FAILED","message":"..."}).
type APIError struct {
	StatusCode int
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// Error returns the server-provided message when present, otherwise a
// generic description with the HTTP status code.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}
