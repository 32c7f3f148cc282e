package tui

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/issuetrackhq/tracker-tui/internal/cache"
	"github.com/issuetrackhq/tracker-tui/internal/config"
	"github.com/issuetrackhq/tracker-tui/internal/logger"
	"github.com/issuetrackhq/tracker-tui/internal/trackerapi"
)

// App is the main application controller that manages all UI components.
type App struct {
	app       *tview.Application
	api       *trackerapi.Client
	cache     *cache.Store
	config    config.Config
	theme     Theme
	themeTags ThemeTags

	// UI components
	pages        *tview.Pages
	mainLayout   *tview.Flex
	issuesTable  *tview.Table
	detailsView  *tview.TextView
	statusBar    *tview.TextView
	signInView   *tview.TextView
	formModal    *IssueFormModal
	confirmModal *tview.Modal

	// App state (protected by issuesMu)
	issuesMu      sync.RWMutex
	currentUser   *trackerapi.User
	issues        []trackerapi.Issue
	selectedIssue *trackerapi.Issue

	// Loading state
	isLoading         bool
	signedIn          bool
	refreshGeneration atomic.Int64

	// Data access helpers (overridable in tests)
	fetchIssues      func(context.Context) ([]trackerapi.Issue, error)
	fetchIssueByID   func(context.Context, int64) (trackerapi.Issue, error)
	fetchUser        func(context.Context, string) (trackerapi.User, error)
	fetchCurrentUser func(context.Context) (trackerapi.User, error)
	queueUpdateDraw  func(func())

	// UI update mutex (for test safety when queueUpdateDraw executes immediately)
	uiUpdateMu sync.Mutex

	// Race-safety for issue detail fetching
	fetchingIssueID int64

	// Transient status-bar notification
	notifyMu    sync.Mutex
	notifyText  string
	notifyTimer *time.Timer
}

// Page names registered on the tview.Pages stack.
const (
	pageMain    = "main"
	pageSignIn  = "signin"
	pageForm    = "issue-form"
	pageConfirm = "confirm-delete"
)

// NewApp creates a new application instance.
func NewApp(api *trackerapi.Client, cfg config.Config) *App {
	theme := ResolveTheme(cfg.Theme)

	app := &App{
		app:       tview.NewApplication(),
		api:       api,
		cache:     cache.NewStore(api, cfg.CacheTTL),
		config:    cfg,
		theme:     theme,
		themeTags: NewThemeTags(theme),
		pages:     tview.NewPages(),
	}

	app.fetchIssues = app.cache.Issues
	app.fetchIssueByID = app.cache.Issue
	app.fetchUser = app.cache.User
	app.fetchCurrentUser = api.GetCurrentUser
	app.queueUpdateDraw = func(f func()) {
		app.app.QueueUpdateDraw(f)
	}

	app.buildLayout()
	app.formModal = NewIssueFormModal(app)
	return app
}

// Run starts the application event loop.
func (a *App) Run() error {
	logger.Info("tui.app: starting application")
	a.applyThemeStyles()
	a.bindGlobalKeys()
	a.loadInitialData()
	return a.app.SetRoot(a.pages, true).EnableMouse(true).Run()
}

// Stop terminates the application event loop.
func (a *App) Stop() {
	a.app.Stop()
}

// loadInitialData resolves the signed-in user and loads the issue list. When
// the token is missing or rejected the sign-in gate is shown instead.
func (a *App) loadInitialData() {
	a.setLoading(true)
	go func() {
		ctx := context.Background()
		user, err := a.fetchCurrentUser(ctx)
		a.QueueUpdateDraw(func() {
			a.setLoading(false)
			if err != nil {
				logger.ErrorWithErr(err, "tui.app: sign-in check failed")
				a.showSignInGate(err)
				return
			}
			logger.Info("tui.app: signed in user_id=%s", user.ID)
			a.issuesMu.Lock()
			a.currentUser = &user
			a.issuesMu.Unlock()
			a.signedIn = true
			a.pages.SwitchToPage(pageMain)
			a.updateStatusBar()
			a.refreshIssues()
		})
	}()
}

// showSignInGate replaces the main view with sign-in instructions.
func (a *App) showSignInGate(cause error) {
	a.signedIn = false
	text := fmt.Sprintf(
		"%sSign in required[-]\n\n%sSet %s to a valid token issued by your identity provider and restart.\n\n%sAPI: %s[-]\n%s%v[-]",
		a.themeTags.Accent,
		a.themeTags.Foreground,
		config.APITokenEnv,
		a.themeTags.SecondaryText,
		a.api.BaseURL(),
		a.themeTags.Error,
		cause,
	)
	a.signInView.SetText(text)
	a.pages.SwitchToPage(pageSignIn)
}

// CurrentUser returns the signed-in user, or nil before sign-in completes.
func (a *App) CurrentUser() *trackerapi.User {
	a.issuesMu.RLock()
	defer a.issuesMu.RUnlock()
	return a.currentUser
}

// isOwner reports whether the signed-in user authored the issue.
func (a *App) isOwner(issue trackerapi.Issue) bool {
	user := a.CurrentUser()
	return user != nil && user.ID == issue.Author
}

// buildLayout assembles the page structure.
func (a *App) buildLayout() {
	a.issuesTable = tview.NewTable()
	a.issuesTable.SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorder(true).
		SetTitle(" Issues ")
	a.issuesTable.SetSelectionChangedFunc(func(row, col int) {
		if issue, ok := a.issueAtRow(row); ok {
			a.onIssueSelected(issue)
		}
	})
	a.issuesTable.SetSelectedFunc(func(row, col int) {
		if issue, ok := a.issueAtRow(row); ok {
			a.openIssueForm(issue)
		}
	})

	a.detailsView = tview.NewTextView()
	a.detailsView.SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true).
		SetBorder(true).
		SetTitle(" Details ")

	a.statusBar = tview.NewTextView()
	a.statusBar.SetDynamicColors(true)

	content := tview.NewFlex().
		AddItem(a.issuesTable, 0, 3, true).
		AddItem(a.detailsView, 0, 2, false)

	a.mainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(content, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.signInView = tview.NewTextView()
	a.signInView.SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetBorder(true).
		SetTitle(" Tracker ")

	a.pages.AddPage(pageSignIn, a.signInView, true, false)
	a.pages.AddPage(pageMain, a.mainLayout, true, true)
}

// applyThemeStyles applies theme colors to tview defaults and components.
func (a *App) applyThemeStyles() {
	tview.Styles.PrimitiveBackgroundColor = a.theme.Background
	tview.Styles.ContrastBackgroundColor = a.theme.Background
	tview.Styles.MoreContrastBackgroundColor = a.theme.HeaderBg
	tview.Styles.BorderColor = a.theme.Border
	tview.Styles.TitleColor = a.theme.Foreground
	tview.Styles.GraphicsColor = a.theme.Border
	tview.Styles.PrimaryTextColor = a.theme.Foreground
	tview.Styles.SecondaryTextColor = a.theme.SecondaryText
	tview.Styles.InverseTextColor = a.theme.Background

	a.issuesTable.SetTitleColor(a.theme.Foreground).
		SetBorderColor(a.theme.BorderFocus).
		SetBackgroundColor(a.theme.Background)
	a.issuesTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(a.theme.SelectionText).
		Background(a.theme.SelectionBg))

	a.detailsView.SetTitleColor(a.theme.Foreground).
		SetBorderColor(a.theme.Border).
		SetBackgroundColor(a.theme.Background)

	a.statusBar.SetBackgroundColor(a.theme.HeaderBg)

	a.signInView.SetTitleColor(a.theme.Foreground).
		SetBorderColor(a.theme.Border).
		SetBackgroundColor(a.theme.Background)
}

// bindGlobalKeys installs the application-wide key handler.
func (a *App) bindGlobalKeys() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Modals own the keyboard while visible.
		if name, _ := a.pages.GetFrontPage(); name == pageForm || name == pageConfirm {
			return event
		}
		if !a.signedIn {
			if event.Rune() == 'q' || event.Key() == tcell.KeyCtrlC {
				a.app.Stop()
				return nil
			}
			return event
		}

		switch event.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case 'r':
			a.hardRefresh()
			return nil
		case 'n':
			a.openCreateForm()
			return nil
		case 'e':
			if issue, ok := a.selectedTableIssue(); ok {
				a.openIssueForm(issue)
			}
			return nil
		case 'x':
			if issue, ok := a.selectedTableIssue(); ok {
				a.promptDeleteIssue(issue)
			}
			return nil
		}
		if event.Key() == tcell.KeyCtrlC {
			a.app.Stop()
			return nil
		}
		return event
	})
}

// selectedTableIssue returns the issue under the table cursor.
func (a *App) selectedTableIssue() (trackerapi.Issue, bool) {
	row, _ := a.issuesTable.GetSelection()
	return a.issueAtRow(row)
}

func (a *App) issueAtRow(row int) (trackerapi.Issue, bool) {
	a.issuesMu.RLock()
	defer a.issuesMu.RUnlock()
	idx := row - 1 // header row
	if idx < 0 || idx >= len(a.issues) {
		return trackerapi.Issue{}, false
	}
	return a.issues[idx], true
}

// QueueUpdateDraw schedules a UI update, serialized for test safety.
func (a *App) QueueUpdateDraw(f func()) {
	a.queueUpdateDraw(func() {
		a.uiUpdateMu.Lock()
		defer a.uiUpdateMu.Unlock()
		f()
	})
}

// hardRefresh drops every cached entry and refetches the list, so stale
// author names and issue details are re-resolved too.
func (a *App) hardRefresh() {
	a.cache.InvalidateAll()
	a.refreshIssues()
}

// refreshIssues fetches the issue list in the background and rebuilds the
// table. Stale responses from superseded refreshes are dropped.
func (a *App) refreshIssues() {
	generation := a.refreshGeneration.Add(1)
	a.setLoading(true)

	go func() {
		ctx := context.Background()
		issues, err := a.fetchIssues(ctx)

		a.QueueUpdateDraw(func() {
			if generation != a.refreshGeneration.Load() {
				logger.Debug("tui.app: dropping stale issue refresh generation=%d", generation)
				return
			}
			a.setLoading(false)
			if err != nil {
				logger.ErrorWithErr(err, "tui.app: failed to load issues")
				a.notifyError(err)
				return
			}
			a.updateIssuesData(issues)
		})
	}()
}

// updateIssuesData replaces the issue list and rebuilds the table.
func (a *App) updateIssuesData(issues []trackerapi.Issue) {
	a.issuesMu.Lock()
	a.issues = issues
	var keepSelected *trackerapi.Issue
	if a.selectedIssue != nil {
		for i := range issues {
			if issues[i].ID == a.selectedIssue.ID {
				keepSelected = &issues[i]
				break
			}
		}
	}
	a.selectedIssue = keepSelected
	a.issuesMu.Unlock()

	a.rebuildIssuesTable()
	a.updateDetailsView()
	a.updateStatusBar()
}

// onIssueSelected updates the details pane for the highlighted issue and
// refreshes it from the API in the background.
func (a *App) onIssueSelected(issue trackerapi.Issue) {
	a.issuesMu.Lock()
	a.selectedIssue = &issue
	a.issuesMu.Unlock()
	a.updateDetailsView()

	issueID := issue.ID
	a.fetchingIssueID = issueID

	go func() {
		ctx := context.Background()
		fresh, err := a.fetchIssueByID(ctx, issueID)

		a.QueueUpdateDraw(func() {
			// Only apply if this is still the issue being fetched.
			if a.fetchingIssueID != issueID {
				return
			}
			if err != nil {
				logger.ErrorWithErr(err, "tui.app: failed to fetch issue id=%d", issueID)
				return
			}
			a.issuesMu.Lock()
			a.selectedIssue = &fresh
			a.issuesMu.Unlock()
			a.updateDetailsView()
		})
	}()
}

// openCreateForm opens the issue form in create mode.
func (a *App) openCreateForm() {
	a.openIssueForm(trackerapi.Issue{})
}

// openIssueForm opens the issue form for the given issue. A zero ID means
// create mode; an issue authored by someone else opens read-only.
func (a *App) openIssueForm(issue trackerapi.Issue) {
	a.formModal.Show(issue)
}

// promptDeleteIssue asks for confirmation before deleting. Only the issue's
// author may delete it.
func (a *App) promptDeleteIssue(issue trackerapi.Issue) {
	if !a.isOwner(issue) {
		a.notifyWarning("Only the author can delete this issue.")
		return
	}

	a.confirmModal = tview.NewModal().
		SetText(fmt.Sprintf("Delete issue %q?", issue.Title)).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage(pageConfirm)
			a.app.SetFocus(a.issuesTable)
			if buttonLabel == "Delete" {
				a.deleteIssue(issue)
			}
		})
	a.confirmModal.SetBackgroundColor(a.theme.HeaderBg).
		SetTextColor(a.theme.Foreground).
		SetButtonBackgroundColor(a.theme.SelectionBg).
		SetButtonTextColor(a.theme.Foreground)
	a.pages.AddPage(pageConfirm, a.confirmModal, true, true)
	a.app.SetFocus(a.confirmModal)
}

// deleteIssue performs the delete in the background and refreshes the table.
func (a *App) deleteIssue(issue trackerapi.Issue) {
	a.markRowDeleting(issue.ID)
	go func() {
		ctx := context.Background()
		err := a.cache.DeleteIssue(ctx, issue.ID)

		a.QueueUpdateDraw(func() {
			if err != nil {
				logger.ErrorWithErr(err, "tui.app: delete failed id=%d", issue.ID)
				a.notifyError(err)
				a.rebuildIssuesTable()
				return
			}
			logger.Info("tui.app: deleted issue id=%d", issue.ID)
			a.notifySuccess("Issue deleted.")
			a.refreshIssues()
		})
	}()
}

// setLoading toggles the loading indicator in the table title.
func (a *App) setLoading(loading bool) {
	a.isLoading = loading
	if loading {
		a.issuesTable.SetTitle(" Issues (loading...) ")
	} else {
		a.issuesTable.SetTitle(" Issues ")
	}
}

// notifySuccess shows a transient success message in the status bar.
func (a *App) notifySuccess(msg string) {
	a.notify(a.themeTags.Success + msg + "[-]")
}

// notifyWarning shows a transient warning message in the status bar.
func (a *App) notifyWarning(msg string) {
	a.notify(a.themeTags.Warning + msg + "[-]")
}

// notifyError shows a transient error message in the status bar.
func (a *App) notifyError(err error) {
	a.notify(fmt.Sprintf("%sError: %v[-]", a.themeTags.Error, err))
}

func (a *App) notify(tagged string) {
	a.notifyMu.Lock()
	a.notifyText = tagged
	if a.notifyTimer != nil {
		a.notifyTimer.Stop()
	}
	a.notifyTimer = time.AfterFunc(4*time.Second, func() {
		a.notifyMu.Lock()
		a.notifyText = ""
		a.notifyMu.Unlock()
		a.QueueUpdateDraw(a.updateStatusBar)
	})
	a.notifyMu.Unlock()
	a.updateStatusBar()
}

// Notification returns the current transient status-bar message, without
// color tags stripped.
func (a *App) Notification() string {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	return a.notifyText
}

// updateStatusBar renders the help line, issue count and any notification.
func (a *App) updateStatusBar() {
	keyColor := a.themeTags.SecondaryText
	helpText := fmt.Sprintf("%sj/k: navigate | Enter/e: open | n: new | x: delete | r: refresh | q: quit[-]", keyColor)

	a.issuesMu.RLock()
	issuesLen := len(a.issues)
	user := a.currentUser
	a.issuesMu.RUnlock()

	countText := fmt.Sprintf("%s%d issues[-]", a.themeTags.Accent, issuesLen)
	if issuesLen == 0 {
		countText = fmt.Sprintf("%sNo issues[-]", a.themeTags.SecondaryText)
	}

	userText := ""
	if user != nil {
		userText = fmt.Sprintf("%s%s[-]", a.themeTags.Accent, user.DisplayName())
	}

	sep := fmt.Sprintf("%s | [-]", a.themeTags.Border)

	parts := []string{helpText}
	if userText != "" {
		parts = append(parts, userText)
	}
	parts = append(parts, countText)
	a.notifyMu.Lock()
	if a.notifyText != "" {
		parts = append(parts, a.notifyText)
	}
	a.notifyMu.Unlock()

	text := parts[0]
	for i := 1; i < len(parts); i++ {
		text += sep + parts[i]
	}
	a.statusBar.SetText(text)
}

// updateDetailsView renders the selected issue into the details pane.
func (a *App) updateDetailsView() {
	a.issuesMu.RLock()
	issue := a.selectedIssue
	a.issuesMu.RUnlock()

	if issue == nil {
		a.detailsView.SetText(fmt.Sprintf("%sSelect an issue to see its details.[-]", a.themeTags.SecondaryText))
		return
	}

	_, _, width, _ := a.detailsView.GetInnerRect()
	body := renderMarkdown(issue.Description, width, a.theme.Name)

	header := fmt.Sprintf(
		"%s#%d %s[-]\n%sStatus: %s  Label: %s[-]\n\n",
		a.themeTags.Accent, issue.ID, issue.Title,
		a.themeTags.SecondaryText, statusDisplayName(issue.Status), labelDisplayName(issue.Label),
	)
	a.detailsView.SetText(header + tview.TranslateANSI(body))
	a.detailsView.ScrollToBeginning()

	// Resolve the author name asynchronously so the pane is never blocked
	// on a user lookup.
	authorID := issue.Author
	issueID := issue.ID
	go func() {
		user, err := a.fetchUser(context.Background(), authorID)
		if err != nil {
			logger.Debug("tui.app: author lookup failed user_id=%s", authorID)
			return
		}
		a.QueueUpdateDraw(func() {
			a.issuesMu.RLock()
			current := a.selectedIssue
			a.issuesMu.RUnlock()
			if current == nil || current.ID != issueID {
				return
			}
			authorLine := fmt.Sprintf("%sAuthor: %s[-]\n", a.themeTags.SecondaryText, user.DisplayName())
			header := fmt.Sprintf(
				"%s#%d %s[-]\n%sStatus: %s  Label: %s[-]\n%s\n",
				a.themeTags.Accent, issueID, current.Title,
				a.themeTags.SecondaryText, statusDisplayName(current.Status), labelDisplayName(current.Label),
				authorLine,
			)
			a.detailsView.SetText(header + tview.TranslateANSI(body))
		})
	}()
}
