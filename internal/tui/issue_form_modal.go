package tui

import (
	"context"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/issuetrackhq/tracker-tui/internal/logger"
	"github.com/issuetrackhq/tracker-tui/internal/trackerapi"
)

// IssueFormModal is the create/edit dialog for issues. Issues authored by
// someone else open read-only: every field disabled and no submit button.
type IssueFormModal struct {
	app          *App
	modal        *tview.Flex
	modalContent *tview.Flex
	form         *tview.Form
	errorView    *tview.TextView

	titleField  *tview.InputField
	descField   *tview.TextArea
	statusDrop  *tview.DropDown
	labelDrop   *tview.DropDown
	statusValue trackerapi.Status
	labelValue  trackerapi.Label

	issueID    int64 // 0 = create mode
	author     string
	readOnly   bool
	submitting bool
}

// NewIssueFormModal creates the issue form modal.
func NewIssueFormModal(app *App) *IssueFormModal {
	return &IssueFormModal{app: app}
}

// Show opens the form. An issue with a zero ID opens in create mode with
// defaults; otherwise the fields are prefilled from the issue.
func (m *IssueFormModal) Show(issue trackerapi.Issue) {
	user := m.app.CurrentUser()
	if user == nil {
		return
	}

	m.issueID = issue.ID
	m.submitting = false

	if issue.ID == 0 {
		m.author = user.ID
		m.statusValue = trackerapi.StatusTodo
		m.labelValue = trackerapi.LabelBug
		m.readOnly = false
	} else {
		m.author = issue.Author
		m.statusValue = issue.Status
		m.labelValue = issue.Label
		m.readOnly = issue.Author != user.ID
	}

	m.buildForm(issue)

	title := " New Issue "
	if issue.ID != 0 {
		if m.readOnly {
			title = " View Issue "
		} else {
			title = " Edit Issue "
		}
	}

	m.modalContent = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.form, 0, 1, true).
		AddItem(m.errorView, 2, 0, false)
	m.modalContent.SetBorder(true).
		SetTitle(title).
		SetTitleColor(m.app.theme.Foreground).
		SetBorderColor(m.app.theme.Accent).
		SetBackgroundColor(m.app.theme.HeaderBg)

	// Center the dialog over the main layout.
	inner := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(m.modalContent, 17, 0, true).
		AddItem(nil, 0, 1, false)
	m.modal = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(inner, 0, 2, true).
		AddItem(nil, 0, 1, false)

	m.app.pages.AddPage(pageForm, m.modal, true, true)
	m.app.app.SetFocus(m.form)
}

// Visible reports whether the form is currently shown.
func (m *IssueFormModal) Visible() bool {
	return m.app.pages.HasPage(pageForm)
}

// Hide closes the form and returns focus to the issue table.
func (m *IssueFormModal) Hide() {
	m.app.pages.RemovePage(pageForm)
	m.issueID = 0
	m.app.app.SetFocus(m.app.issuesTable)
}

func (m *IssueFormModal) buildForm(issue trackerapi.Issue) {
	statuses := trackerapi.Statuses()
	labels := trackerapi.Labels()

	statusOptions := make([]string, len(statuses))
	statusIndex := 0
	for i, s := range statuses {
		statusOptions[i] = statusDisplayName(s)
		if s == m.statusValue {
			statusIndex = i
		}
	}
	labelOptions := make([]string, len(labels))
	labelIndex := 0
	for i, l := range labels {
		labelOptions[i] = labelDisplayName(l)
		if l == m.labelValue {
			labelIndex = i
		}
	}

	m.titleField = tview.NewInputField().
		SetLabel("Title").
		SetText(issue.Title).
		SetFieldWidth(0)
	m.descField = tview.NewTextArea().
		SetLabel("Description").
		SetText(issue.Description, false)
	m.descField.SetSize(5, 0)
	m.statusDrop = tview.NewDropDown().
		SetLabel("Status").
		SetOptions(statusOptions, func(option string, index int) {
			if index >= 0 && index < len(statuses) {
				m.statusValue = statuses[index]
			}
		})
	m.statusDrop.SetCurrentOption(statusIndex)
	m.labelDrop = tview.NewDropDown().
		SetLabel("Label").
		SetOptions(labelOptions, func(option string, index int) {
			if index >= 0 && index < len(labels) {
				m.labelValue = labels[index]
			}
		})
	m.labelDrop.SetCurrentOption(labelIndex)

	m.errorView = tview.NewTextView()
	m.errorView.SetDynamicColors(true).
		SetBackgroundColor(m.app.theme.HeaderBg)

	m.form = tview.NewForm()
	m.form.SetBackgroundColor(m.app.theme.HeaderBg).
		SetBorderPadding(0, 0, 1, 1)
	m.form.SetFieldBackgroundColor(m.app.theme.Background).
		SetFieldTextColor(m.app.theme.Foreground).
		SetLabelColor(m.app.theme.SecondaryText).
		SetButtonBackgroundColor(m.app.theme.SelectionBg).
		SetButtonTextColor(m.app.theme.Foreground)

	m.form.AddFormItem(m.titleField).
		AddFormItem(m.descField).
		AddFormItem(m.statusDrop).
		AddFormItem(m.labelDrop)

	if m.readOnly {
		m.titleField.SetDisabled(true)
		m.descField.SetDisabled(true)
		m.statusDrop.SetDisabled(true)
		m.labelDrop.SetDisabled(true)
		m.form.AddButton("Close", m.Hide)
	} else {
		m.form.AddButton("Submit", m.Submit)
		m.form.AddButton("Cancel", m.Hide)
	}

	m.form.SetCancelFunc(m.Hide)
	m.form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			m.Hide()
			return nil
		}
		return event
	})
}

// payload assembles the submission payload from the form fields.
func (m *IssueFormModal) payload() trackerapi.NewIssue {
	return trackerapi.NewIssue{
		Title:       m.titleField.GetText(),
		Description: m.descField.GetText(),
		Status:      m.statusValue,
		Label:       m.labelValue,
		Author:      m.author,
	}
}

// Submit validates the form and sends the create or update request. Invalid
// input never reaches the network; the dialog stays open on failure.
func (m *IssueFormModal) Submit() {
	if m.readOnly || m.submitting {
		return
	}

	input := m.payload()
	if errs := input.Validate(); errs != nil {
		m.showFieldErrors(errs)
		return
	}
	m.errorView.SetText("")

	m.submitting = true
	m.setSubmitLabel("Submitting...")

	issueID := m.issueID
	go func() {
		ctx := context.Background()
		var err error
		if issueID == 0 {
			err = m.app.cache.CreateIssue(ctx, input)
		} else {
			err = m.app.cache.UpdateIssue(ctx, issueID, input)
		}

		m.app.QueueUpdateDraw(func() {
			m.submitting = false
			m.setSubmitLabel("Submit")
			if err != nil {
				logger.ErrorWithErr(err, "tui.form: submit failed id=%d", issueID)
				m.errorView.SetText(m.app.themeTags.Error + err.Error() + "[-]")
				return
			}
			m.Hide()
			if issueID == 0 {
				m.app.notifySuccess("Issue created.")
			} else {
				m.app.notifySuccess("Issue updated.")
			}
			m.app.refreshIssues()
		})
	}()
}

func (m *IssueFormModal) setSubmitLabel(label string) {
	if m.readOnly {
		return
	}
	if button := m.form.GetButton(0); button != nil {
		button.SetLabel(label)
	}
}

// showFieldErrors renders validation messages in field order.
func (m *IssueFormModal) showFieldErrors(errs trackerapi.FieldErrors) {
	order := []string{
		trackerapi.FieldTitle,
		trackerapi.FieldDescription,
		trackerapi.FieldStatus,
		trackerapi.FieldLabel,
		trackerapi.FieldAuthor,
	}
	var lines []string
	for _, field := range order {
		if msg, ok := errs[field]; ok {
			lines = append(lines, m.app.themeTags.Error+msg+"[-]")
		}
	}
	m.errorView.SetText(strings.Join(lines, " "))
}
