package tui

import (
	"context"

	"github.com/rivo/tview"

	"github.com/issuetrackhq/tracker-tui/internal/logger"
	"github.com/issuetrackhq/tracker-tui/internal/trackerapi"
)

// Table column order.
const (
	colAuthor = iota
	colTitle
	colDescription
	colStatus
	colLabel
	colActions
	columnCount
)

const descriptionCellLimit = 60

// emptyTablePlaceholder is shown when the issue list has no rows.
const emptyTablePlaceholder = "No results."

// statusDisplayName maps a status value to its display form.
func statusDisplayName(s trackerapi.Status) string {
	switch s {
	case trackerapi.StatusTodo:
		return "Todo"
	case trackerapi.StatusInProgress:
		return "In Progress"
	case trackerapi.StatusDone:
		return "Done"
	case trackerapi.StatusBacklog:
		return "Backlog"
	}
	return string(s)
}

// labelDisplayName maps a label value to its display form.
func labelDisplayName(l trackerapi.Label) string {
	switch l {
	case trackerapi.LabelBug:
		return "Bug"
	case trackerapi.LabelFeature:
		return "Feature"
	case trackerapi.LabelDocumentation:
		return "Documentation"
	}
	return string(l)
}

// truncate shortens s to at most limit characters, cutting on rune
// boundaries so multibyte text stays valid UTF-8.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// rebuildIssuesTable re-renders the table from the current issue list.
// Author cells start as placeholders and are resolved asynchronously through
// the user cache.
func (a *App) rebuildIssuesTable() {
	a.issuesMu.RLock()
	issues := a.issues
	a.issuesMu.RUnlock()

	a.issuesTable.Clear()

	headers := [columnCount]string{"Author", "Title", "Description", "Status", "Label", ""}
	for col, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(a.theme.SecondaryText).
			SetBackgroundColor(a.theme.HeaderBg).
			SetSelectable(false).
			SetExpansion(headerExpansion(col))
		a.issuesTable.SetCell(0, col, cell)
	}

	if len(issues) == 0 {
		cell := tview.NewTableCell(emptyTablePlaceholder).
			SetTextColor(a.theme.SecondaryText).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetExpansion(1)
		a.issuesTable.SetCell(1, colTitle, cell)
		return
	}

	generation := a.refreshGeneration.Load()
	for i, issue := range issues {
		row := i + 1
		a.issuesTable.SetCell(row, colAuthor, tview.NewTableCell("...").
			SetTextColor(a.theme.SecondaryText))
		a.issuesTable.SetCell(row, colTitle, tview.NewTableCell(issue.Title).
			SetTextColor(a.theme.Foreground).
			SetExpansion(2))
		a.issuesTable.SetCell(row, colDescription, tview.NewTableCell(truncate(issue.Description, descriptionCellLimit)).
			SetTextColor(a.theme.SecondaryText).
			SetExpansion(3))
		a.issuesTable.SetCell(row, colStatus, tview.NewTableCell(statusDisplayName(issue.Status)).
			SetTextColor(a.theme.Accent))
		a.issuesTable.SetCell(row, colLabel, tview.NewTableCell(labelDisplayName(issue.Label)).
			SetTextColor(a.theme.Warning))
		a.issuesTable.SetCell(row, colActions, tview.NewTableCell(a.actionHint(issue)).
			SetTextColor(a.theme.SecondaryText).
			SetAlign(tview.AlignRight))

		a.resolveAuthorCell(row, issue.Author, generation)
	}

	if row, _ := a.issuesTable.GetSelection(); row < 1 {
		a.issuesTable.Select(1, 0)
	}
}

func headerExpansion(col int) int {
	switch col {
	case colTitle:
		return 2
	case colDescription:
		return 3
	}
	return 0
}

// actionHint renders the per-row action indicator. Editing is open to the
// author only; everyone else gets a read-only view.
func (a *App) actionHint(issue trackerapi.Issue) string {
	if a.isOwner(issue) {
		return "e:edit x:del"
	}
	return "e:view"
}

// resolveAuthorCell fills in the author display name once the user lookup
// completes. Lookups racing a newer table rebuild are dropped.
func (a *App) resolveAuthorCell(row int, authorID string, generation int64) {
	go func() {
		user, err := a.fetchUser(context.Background(), authorID)

		a.QueueUpdateDraw(func() {
			if generation != a.refreshGeneration.Load() {
				return
			}
			cell := a.issuesTable.GetCell(row, colAuthor)
			if cell == nil {
				return
			}
			if err != nil {
				logger.Debug("tui.table: author lookup failed user_id=%s", authorID)
				cell.SetText(authorID)
				return
			}
			cell.SetText(user.DisplayName()).SetTextColor(a.theme.Foreground)
		})
	}()
}

// markRowDeleting swaps the action cell of the issue's row for a progress
// marker while the delete request is in flight.
func (a *App) markRowDeleting(issueID int64) {
	a.issuesMu.RLock()
	row := -1
	for i := range a.issues {
		if a.issues[i].ID == issueID {
			row = i + 1
			break
		}
	}
	a.issuesMu.RUnlock()
	if row < 1 {
		return
	}
	if cell := a.issuesTable.GetCell(row, colActions); cell != nil {
		cell.SetText("deleting...").SetTextColor(a.theme.Warning)
	}
}
