package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/issuetrackhq/tracker-tui/internal/cache"
	"github.com/issuetrackhq/tracker-tui/internal/config"
	"github.com/issuetrackhq/tracker-tui/internal/trackerapi"
)

// fakeTracker is an httptest-backed tracker API with request counters.
type fakeTracker struct {
	mu      sync.Mutex
	me      trackerapi.User
	users   map[string]trackerapi.User
	issues  []trackerapi.Issue
	nextID  int64
	reject  bool // respond 401 to /api/user/me
	counts  map[string]int
	created []trackerapi.NewIssue
	updated map[int64]trackerapi.NewIssue
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		me:      trackerapi.User{ID: "user_me", Username: "me"},
		users:   map[string]trackerapi.User{},
		nextID:  100,
		counts:  map[string]int{},
		updated: map[int64]trackerapi.NewIssue{},
	}
}

func (f *fakeTracker) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *fakeTracker) countPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for key, n := range f.counts {
		if strings.HasPrefix(key, prefix) {
			total += n
		}
	}
	return total
}

func (f *fakeTracker) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.counts[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path

		switch {
		case path == "/api/user/me":
			f.mu.Lock()
			reject := f.reject
			me := f.me
			f.mu.Unlock()
			if reject {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"FAILED","message":"invalid token"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(me)

		case strings.HasPrefix(path, "/api/user/"):
			id := strings.TrimPrefix(path, "/api/user/")
			f.mu.Lock()
			user, ok := f.users[id]
			f.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":"FAILED","message":"user not found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(user)

		case path == "/api/issues" && r.Method == http.MethodGet:
			f.mu.Lock()
			issues := append([]trackerapi.Issue(nil), f.issues...)
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(issues)

		case path == "/api/issue" && r.Method == http.MethodPost:
			var input trackerapi.NewIssue
			_ = json.NewDecoder(r.Body).Decode(&input)
			f.mu.Lock()
			f.nextID++
			issue := trackerapi.Issue{
				ID:          f.nextID,
				Title:       input.Title,
				Description: input.Description,
				Status:      input.Status,
				Label:       input.Label,
				Author:      input.Author,
			}
			f.issues = append(f.issues, issue)
			f.created = append(f.created, input)
			f.mu.Unlock()
			_, _ = fmt.Fprintf(w, `{"status":"SUCCESS","data":{"id":%d}}`, issue.ID)

		case strings.HasPrefix(path, "/api/issue/"):
			id, err := strconv.ParseInt(strings.TrimPrefix(path, "/api/issue/"), 10, 64)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			idx := -1
			for i := range f.issues {
				if f.issues[i].ID == id {
					idx = i
					break
				}
			}
			switch r.Method {
			case http.MethodGet:
				if idx < 0 {
					w.WriteHeader(http.StatusNotFound)
					_, _ = w.Write([]byte(`{"status":"FAILED","message":"issue not found"}`))
					return
				}
				payload, _ := json.Marshal(f.issues[idx])
				_, _ = fmt.Fprintf(w, `{"status":"SUCCESS","data":%s}`, payload)
			case http.MethodPatch:
				var input trackerapi.NewIssue
				_ = json.NewDecoder(r.Body).Decode(&input)
				f.updated[id] = input
				if idx >= 0 {
					f.issues[idx].Title = input.Title
					f.issues[idx].Description = input.Description
					f.issues[idx].Status = input.Status
					f.issues[idx].Label = input.Label
				}
				_, _ = fmt.Fprintf(w, `{"status":"SUCCESS","data":{"id":%d}}`, id)
			case http.MethodDelete:
				if idx >= 0 {
					f.issues = append(f.issues[:idx], f.issues[idx+1:]...)
				}
				_, _ = fmt.Fprintf(w, `{"status":"SUCCESS","data":{"id":%d}}`, id)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// newTestApp builds a headless App against the fake tracker with immediate,
// serialized UI updates.
func newTestApp(t *testing.T, tracker *fakeTracker) *App {
	t.Helper()
	server := httptest.NewServer(tracker.handler())
	t.Cleanup(server.Close)

	client := trackerapi.NewClient(trackerapi.ClientConfig{
		Token:   "test-token",
		BaseURL: server.URL,
	})
	app := NewApp(client, config.Config{
		APIToken:   "test-token",
		APIBaseURL: server.URL,
		CacheTTL:   time.Minute,
	})

	var drawMu sync.Mutex
	app.queueUpdateDraw = func(f func()) {
		drawMu.Lock()
		f()
		drawMu.Unlock()
	}
	return app
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func signIn(t *testing.T, app *App) {
	t.Helper()
	app.loadInitialData()
	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return app.signedIn
	})
}

func waitForIssuesLoaded(t *testing.T, app *App, want int) {
	t.Helper()
	waitForCondition(t, time.Second, func() bool {
		app.issuesMu.RLock()
		defer app.issuesMu.RUnlock()
		return len(app.issues) == want
	})
}

func TestSignInGateShownWhenTokenRejected(t *testing.T) {
	tracker := newFakeTracker()
	tracker.reject = true
	app := newTestApp(t, tracker)

	app.loadInitialData()
	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		name, _ := app.pages.GetFrontPage()
		return name == pageSignIn
	})

	if got := tracker.count("GET /api/issues"); got != 0 {
		t.Errorf("issue list fetched %d times before sign-in, want 0", got)
	}
	if !strings.Contains(app.signInView.GetText(true), "Sign in required") {
		t.Errorf("sign-in view text = %q", app.signInView.GetText(true))
	}
	if !strings.Contains(app.signInView.GetText(true), app.api.BaseURL()) {
		t.Errorf("sign-in view text = %q, missing API base URL %q",
			app.signInView.GetText(true), app.api.BaseURL())
	}
}

func TestIssueTableRendersRowsAndResolvesAuthors(t *testing.T) {
	tracker := newFakeTracker()
	tracker.users["user_me"] = tracker.me
	tracker.users["user_2"] = trackerapi.User{ID: "user_2", Username: "ada"}
	tracker.issues = []trackerapi.Issue{
		{ID: 1, Title: "Mine", Description: "my own issue", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_me"},
		{ID: 2, Title: "Theirs", Description: "someone else's", Status: trackerapi.StatusDone, Label: trackerapi.LabelFeature, Author: "user_2"},
	}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 2)

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return app.issuesTable.GetCell(2, colAuthor).Text == "ada"
	})

	app.uiUpdateMu.Lock()
	defer app.uiUpdateMu.Unlock()
	if got := app.issuesTable.GetCell(1, colTitle).Text; got != "Mine" {
		t.Errorf("row 1 title = %q, want Mine", got)
	}
	if got := app.issuesTable.GetCell(2, colStatus).Text; got != "Done" {
		t.Errorf("row 2 status = %q, want Done", got)
	}
	if got := app.issuesTable.GetCell(1, colActions).Text; got != "e:edit x:del" {
		t.Errorf("own issue actions = %q, want edit+delete", got)
	}
	if got := app.issuesTable.GetCell(2, colActions).Text; got != "e:view" {
		t.Errorf("foreign issue actions = %q, want view only", got)
	}
}

func TestEmptyIssueListShowsPlaceholderRow(t *testing.T) {
	tracker := newFakeTracker()
	app := newTestApp(t, tracker)
	signIn(t, app)

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return app.issuesTable.GetCell(1, colTitle).Text == emptyTablePlaceholder
	})

	app.uiUpdateMu.Lock()
	defer app.uiUpdateMu.Unlock()
	if got := app.issuesTable.GetRowCount(); got != 2 {
		t.Errorf("row count = %d, want header + placeholder", got)
	}
}

func TestCreateFormValidationBlocksSubmission(t *testing.T) {
	tracker := newFakeTracker()
	app := newTestApp(t, tracker)
	signIn(t, app)

	app.uiUpdateMu.Lock()
	app.openCreateForm()
	app.formModal.titleField.SetText("ab")
	app.formModal.descField.SetText("abc", false)
	app.formModal.Submit()
	visible := app.formModal.Visible()
	errText := app.formModal.errorView.GetText(true)
	app.uiUpdateMu.Unlock()

	if !visible {
		t.Error("form closed despite validation errors")
	}
	if !strings.Contains(errText, "title must be at least 3 characters.") {
		t.Errorf("error text = %q, missing title message", errText)
	}
	if !strings.Contains(errText, "description must be at least 5 characters.") {
		t.Errorf("error text = %q, missing description message", errText)
	}
	if got := tracker.count("POST /api/issue"); got != 0 {
		t.Errorf("POST /api/issue count = %d, want 0", got)
	}
}

func TestCreateFormSubmitsOnceAndCloses(t *testing.T) {
	tracker := newFakeTracker()
	app := newTestApp(t, tracker)
	signIn(t, app)

	app.uiUpdateMu.Lock()
	app.openCreateForm()
	app.uiUpdateMu.Unlock()

	// Opening in create mode must not fetch any issue.
	if got := tracker.countPrefix("GET /api/issue/"); got != 0 {
		t.Errorf("GET /api/issue/{id} count = %d on create open, want 0", got)
	}

	app.uiUpdateMu.Lock()
	app.formModal.titleField.SetText("New issue")
	app.formModal.descField.SetText("Something is broken", false)
	app.formModal.Submit()
	app.uiUpdateMu.Unlock()

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return !app.formModal.Visible()
	})

	if got := tracker.count("POST /api/issue"); got != 1 {
		t.Errorf("POST /api/issue count = %d, want exactly 1", got)
	}

	tracker.mu.Lock()
	created := tracker.created[0]
	tracker.mu.Unlock()
	want := trackerapi.NewIssue{
		Title:       "New issue",
		Description: "Something is broken",
		Status:      trackerapi.StatusTodo,
		Label:       trackerapi.LabelBug,
		Author:      "user_me",
	}
	if created != want {
		t.Errorf("created payload = %+v, want %+v", created, want)
	}

	if !strings.Contains(app.Notification(), "Issue created.") {
		t.Errorf("notification = %q, want create confirmation", app.Notification())
	}

	// The list revalidates and shows the new row.
	waitForIssuesLoaded(t, app, 1)
}

func TestEditFormPatchesAndCloses(t *testing.T) {
	tracker := newFakeTracker()
	tracker.users["user_me"] = tracker.me
	tracker.issues = []trackerapi.Issue{
		{ID: 7, Title: "Before", Description: "before edit", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_me"},
	}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 1)

	app.uiUpdateMu.Lock()
	app.openIssueForm(tracker.issues[0])
	app.formModal.titleField.SetText("After")
	app.formModal.descField.SetText("after the edit", false)
	app.formModal.Submit()
	app.uiUpdateMu.Unlock()

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return !app.formModal.Visible()
	})

	if got := tracker.count("PATCH /api/issue/7"); got != 1 {
		t.Errorf("PATCH /api/issue/7 count = %d, want exactly 1", got)
	}
	tracker.mu.Lock()
	updated := tracker.updated[7]
	tracker.mu.Unlock()
	if updated.Title != "After" || updated.Author != "user_me" {
		t.Errorf("updated payload = %+v", updated)
	}
	if !strings.Contains(app.Notification(), "Issue updated.") {
		t.Errorf("notification = %q, want update confirmation", app.Notification())
	}
}

func TestFormReadOnlyForNonOwner(t *testing.T) {
	tracker := newFakeTracker()
	foreign := trackerapi.Issue{
		ID: 3, Title: "Foreign", Description: "not yours",
		Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_other",
	}
	tracker.users["user_other"] = trackerapi.User{ID: "user_other", Username: "other"}
	tracker.issues = []trackerapi.Issue{foreign}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 1)

	app.uiUpdateMu.Lock()
	app.openIssueForm(foreign)
	readOnly := app.formModal.readOnly
	buttons := app.formModal.form.GetButtonCount()
	label := app.formModal.form.GetButton(0).GetLabel()
	app.formModal.Submit()
	app.uiUpdateMu.Unlock()

	if !readOnly {
		t.Error("form not read-only for non-owner")
	}
	if buttons != 1 || label != "Close" {
		t.Errorf("buttons = %d (first %q), want single Close button", buttons, label)
	}

	time.Sleep(20 * time.Millisecond)
	if got := tracker.count("PATCH /api/issue/3"); got != 0 {
		t.Errorf("PATCH /api/issue/3 count = %d, want 0", got)
	}
}

func TestServerRejectionKeepsFormOpen(t *testing.T) {
	tracker := newFakeTracker()
	app := newTestApp(t, tracker)
	signIn(t, app)

	// Make creates fail after validation passes.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/user/me" {
			_ = json.NewEncoder(w).Encode(tracker.me)
			return
		}
		if r.URL.Path == "/api/issues" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"FAILED","message":"database unavailable"}`))
	}))
	t.Cleanup(server.Close)
	failing := trackerapi.NewClient(trackerapi.ClientConfig{Token: "t", BaseURL: server.URL})
	app.cache = cache.NewStore(failing, time.Minute)

	app.uiUpdateMu.Lock()
	app.openCreateForm()
	app.formModal.titleField.SetText("Valid title")
	app.formModal.descField.SetText("Valid description", false)
	app.formModal.Submit()
	app.uiUpdateMu.Unlock()

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return strings.Contains(app.formModal.errorView.GetText(true), "database unavailable")
	})

	app.uiUpdateMu.Lock()
	defer app.uiUpdateMu.Unlock()
	if !app.formModal.Visible() {
		t.Error("form closed on server failure, want it kept open")
	}
}

func TestDeleteSendsSingleRequestAndRemovesRow(t *testing.T) {
	tracker := newFakeTracker()
	tracker.users["user_me"] = tracker.me
	tracker.issues = []trackerapi.Issue{
		{ID: 42, Title: "Doomed", Description: "to be deleted", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_me"},
		{ID: 43, Title: "Survivor", Description: "stays around", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_me"},
	}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 2)

	var doomed trackerapi.Issue
	app.issuesMu.RLock()
	doomed = app.issues[0]
	app.issuesMu.RUnlock()

	app.uiUpdateMu.Lock()
	app.deleteIssue(doomed)
	app.uiUpdateMu.Unlock()
	waitForIssuesLoaded(t, app, 1)

	if got := tracker.count("DELETE /api/issue/42"); got != 1 {
		t.Errorf("DELETE /api/issue/42 count = %d, want exactly 1", got)
	}
	if !strings.Contains(app.Notification(), "Issue deleted.") {
		t.Errorf("notification = %q, want delete confirmation", app.Notification())
	}

	app.uiUpdateMu.Lock()
	defer app.uiUpdateMu.Unlock()
	if got := app.issuesTable.GetCell(1, colTitle).Text; got != "Survivor" {
		t.Errorf("remaining row title = %q, want Survivor", got)
	}
}

func TestDeleteRefusedForNonOwner(t *testing.T) {
	tracker := newFakeTracker()
	foreign := trackerapi.Issue{ID: 9, Title: "Foreign", Description: "not mine", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_other"}
	tracker.users["user_other"] = trackerapi.User{ID: "user_other", Username: "other"}
	tracker.issues = []trackerapi.Issue{foreign}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 1)

	app.uiUpdateMu.Lock()
	app.promptDeleteIssue(foreign)
	hasConfirm := app.pages.HasPage(pageConfirm)
	app.uiUpdateMu.Unlock()

	if hasConfirm {
		t.Error("confirm dialog shown for non-owner delete")
	}
	time.Sleep(20 * time.Millisecond)
	if got := tracker.count("DELETE /api/issue/9"); got != 0 {
		t.Errorf("DELETE /api/issue/9 count = %d, want 0", got)
	}
	if !strings.Contains(app.Notification(), "Only the author can delete this issue.") {
		t.Errorf("notification = %q, want ownership warning", app.Notification())
	}
}

func TestUserLookupsAreCachedAcrossRows(t *testing.T) {
	tracker := newFakeTracker()
	tracker.users["user_me"] = tracker.me
	tracker.users["user_2"] = trackerapi.User{ID: "user_2", Username: "ada"}
	tracker.issues = []trackerapi.Issue{
		{ID: 1, Title: "One", Description: "first issue", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_2"},
		{ID: 2, Title: "Two", Description: "second issue", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_2"},
		{ID: 3, Title: "Three", Description: "third issue", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_2"},
	}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 3)

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		for row := 1; row <= 3; row++ {
			if app.issuesTable.GetCell(row, colAuthor).Text != "ada" {
				return false
			}
		}
		return true
	})

	if got := tracker.count("GET /api/user/user_2"); got != 1 {
		t.Errorf("GET /api/user/user_2 count = %d, want 1 (cached)", got)
	}
}

func TestHardRefreshRefetchesAuthors(t *testing.T) {
	tracker := newFakeTracker()
	tracker.users["user_me"] = tracker.me
	tracker.users["user_2"] = trackerapi.User{ID: "user_2", Username: "ada"}
	tracker.issues = []trackerapi.Issue{
		{ID: 1, Title: "One", Description: "first issue", Status: trackerapi.StatusTodo, Label: trackerapi.LabelBug, Author: "user_2"},
	}
	app := newTestApp(t, tracker)
	signIn(t, app)
	waitForIssuesLoaded(t, app, 1)

	waitForCondition(t, time.Second, func() bool {
		app.uiUpdateMu.Lock()
		defer app.uiUpdateMu.Unlock()
		return app.issuesTable.GetCell(1, colAuthor).Text == "ada"
	})
	listCallsBefore := tracker.count("GET /api/issues")

	app.uiUpdateMu.Lock()
	app.hardRefresh()
	app.uiUpdateMu.Unlock()

	waitForCondition(t, time.Second, func() bool {
		return tracker.count("GET /api/issues") == listCallsBefore+1 &&
			tracker.count("GET /api/user/user_2") == 2
	})
}
