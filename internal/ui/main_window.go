package ui

import (
	stderrors "errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"doc-manager-app/internal/app"
	"doc-manager-app/internal/auth"
	"doc-manager-app/internal/controller"
	"doc-manager-app/internal/models"
)

const appTitle = "Document Manager"

// sortColumns are the sortable fields in toolbar order
var sortColumns = []struct {
	title string
	field string
}{
	{"Name", models.SortByName},
	{"Size", models.SortBySize},
	{"Type", models.SortByMimeType},
	{"Uploaded", models.SortByCreatedAt},
	{"Downloads", models.SortByDownloadCount},
}

// MainWindow represents the main application window. It implements app.View;
// every View method may be called from any goroutine.
type MainWindow struct {
	app    fyne.App
	window fyne.Window

	// screens
	filesScreen fyne.CanvasObject
	loginForm   *LoginForm
	upload      *UploadDialog
	preview     *PreviewDialog

	// UI components
	fileList       *widget.List
	emptyState     *widget.Label
	statusLabel    *widget.Label
	selectionLabel *widget.Label
	pageLabel      *widget.Label
	searchEntry    *widget.Entry
	typeSelect     *widget.Select
	sortBtns       map[string]*widget.Button
	uploadBtn      *widget.Button
	refreshBtn     *widget.Button
	deleteBtn      *widget.Button
	selectPageBtn  *widget.Button
	clearBtn       *widget.Button
	prevBtn        *widget.Button
	nextBtn        *widget.Button
	logoutBtn      *widget.Button

	// Data, touched on the fyne main goroutine only
	state    controller.ListState
	handlers app.Handlers
	route    auth.Route
}

// NewMainWindow creates a new main window. accept restricts the upload file
// picker and may be empty.
func NewMainWindow(fyneApp fyne.App, accept []string) *MainWindow {
	window := fyneApp.NewWindow(appTitle)
	window.Resize(fyne.NewSize(1000, 720))
	window.SetIcon(theme.DocumentIcon())

	mw := &MainWindow{
		app:      fyneApp,
		window:   window,
		sortBtns: make(map[string]*widget.Button),
	}

	mw.createComponents()
	mw.filesScreen = mw.createLayout()
	mw.loginForm = NewLoginForm(mw.login)
	mw.upload = NewUploadDialog(window, accept)
	mw.preview = NewPreviewDialog(window)
	window.SetContent(mw.loginForm.Content())
	return mw
}

// Window returns the underlying fyne window
func (mw *MainWindow) Window() fyne.Window {
	return mw.window
}

// Show displays the main window and runs the event loop
func (mw *MainWindow) Show() {
	mw.window.ShowAndRun()
}

// SetHandlers implements app.View
func (mw *MainWindow) SetHandlers(h app.Handlers) {
	mw.handlers = h
	mw.upload.SetHandlers(h)
	mw.preview.SetHandlers(h.OnRetryPreview, h.OnClosePreview)
}

// SetStatus updates the status label
func (mw *MainWindow) SetStatus(status string) {
	fyne.Do(func() {
		mw.statusLabel.SetText(status)
	})
}

// EnableActions enables/disables action buttons
func (mw *MainWindow) EnableActions(enabled bool) {
	fyne.Do(func() {
		for _, btn := range []*widget.Button{mw.uploadBtn, mw.refreshBtn, mw.deleteBtn} {
			if enabled {
				btn.Enable()
			} else {
				btn.Disable()
			}
		}
		mw.loginForm.SetEnabled(enabled)
		if enabled {
			mw.applySelection()
		}
	})
}

// ShowRoute switches between the login screen and the file screens
func (mw *MainWindow) ShowRoute(route auth.Route) {
	fyne.Do(func() {
		mw.route = route
		switch route {
		case auth.RouteLogin:
			mw.upload.Hide()
			mw.preview.Hide()
			mw.loginForm.Reset()
			mw.window.SetContent(mw.loginForm.Content())
		case auth.RouteUpload:
			mw.window.SetContent(mw.filesScreen)
			mw.upload.Show()
		default:
			mw.window.SetContent(mw.filesScreen)
		}
	})
}

// ShowInfo shows a transient notice
func (mw *MainWindow) ShowInfo(message string) {
	fyne.Do(func() {
		mw.statusLabel.SetText(message)
		mw.app.SendNotification(fyne.NewNotification(appTitle, message))
	})
}

// ShowError reports a failure to the user
func (mw *MainWindow) ShowError(message string) {
	fyne.Do(func() {
		mw.statusLabel.SetText("Error: " + message)
		dialog.ShowError(stderrors.New(message), mw.window)
	})
}

// Confirm asks a yes/no question
func (mw *MainWindow) Confirm(title, message string, onResult func(bool)) {
	fyne.Do(func() {
		dialog.ShowConfirm(title, message, onResult, mw.window)
	})
}

// UpdateList renders a list snapshot
func (mw *MainWindow) UpdateList(state controller.ListState) {
	fyne.Do(func() {
		mw.state = state
		mw.applyList()
	})
}

// UpdateUpload renders the upload queue
func (mw *MainWindow) UpdateUpload(state controller.UploadState) {
	fyne.Do(func() {
		mw.upload.Update(state)
	})
}

// UpdatePreview renders the preview panel
func (mw *MainWindow) UpdatePreview(state controller.PreviewState) {
	fyne.Do(func() {
		mw.preview.Update(state)
	})
}

// UpdateFolders fills the upload target picker
func (mw *MainWindow) UpdateFolders(folders []models.FolderRecord) {
	fyne.Do(func() {
		mw.upload.SetFolders(folders)
	})
}

func (mw *MainWindow) createComponents() {
	// Status label
	mw.statusLabel = widget.NewLabel("Ready")
	mw.statusLabel.TextStyle = fyne.TextStyle{Italic: true}

	// Action buttons
	mw.uploadBtn = widget.NewButtonWithIcon("Upload", theme.UploadIcon(), func() {
		mw.call(func(h app.Handlers) { h.OnNavigate(auth.RouteUpload) }, mw.handlers.OnNavigate != nil)
	})
	mw.uploadBtn.Importance = widget.HighImportance

	mw.refreshBtn = widget.NewButtonWithIcon("Refresh", theme.ViewRefreshIcon(), func() {
		mw.call(func(h app.Handlers) { h.OnRefresh() }, mw.handlers.OnRefresh != nil)
	})

	mw.deleteBtn = widget.NewButtonWithIcon("Delete selected", theme.DeleteIcon(), func() {
		mw.call(func(h app.Handlers) { h.OnDeleteSelected() }, mw.handlers.OnDeleteSelected != nil)
	})
	mw.deleteBtn.Importance = widget.DangerImportance
	mw.deleteBtn.Disable()

	mw.selectPageBtn = widget.NewButton("Select page", func() {
		mw.call(func(h app.Handlers) { h.OnSelectPage() }, mw.handlers.OnSelectPage != nil)
	})
	mw.clearBtn = widget.NewButton("Clear selection", func() {
		mw.call(func(h app.Handlers) { h.OnClearSelection() }, mw.handlers.OnClearSelection != nil)
	})
	mw.clearBtn.Disable()

	mw.logoutBtn = widget.NewButtonWithIcon("Sign out", theme.LogoutIcon(), func() {
		mw.call(func(h app.Handlers) { h.OnLogout() }, mw.handlers.OnLogout != nil)
	})

	// Filters
	mw.searchEntry = widget.NewEntry()
	mw.searchEntry.SetPlaceHolder("Search documents...")
	mw.searchEntry.OnChanged = func(text string) {
		mw.call(func(h app.Handlers) { h.OnSearch(text) }, mw.handlers.OnSearch != nil)
	}

	labels := make([]string, 0, len(models.Categories()))
	for _, c := range models.Categories() {
		labels = append(labels, c.Label())
	}
	mw.typeSelect = widget.NewSelect(labels, func(label string) {
		category, ok := models.ParseCategory(label)
		if !ok {
			return
		}
		mw.call(func(h app.Handlers) { h.OnFilterType(category) }, mw.handlers.OnFilterType != nil)
	})
	mw.typeSelect.PlaceHolder = models.CategoryAll.Label()

	for _, col := range sortColumns {
		field := col.field
		mw.sortBtns[field] = widget.NewButton(col.title, func() {
			mw.call(func(h app.Handlers) { h.OnSort(field) }, mw.handlers.OnSort != nil)
		})
	}

	// Pagination
	mw.pageLabel = widget.NewLabel("Page 1 of 1")
	mw.prevBtn = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
		mw.call(func(h app.Handlers) { h.OnPrevPage() }, mw.handlers.OnPrevPage != nil)
	})
	mw.nextBtn = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
		mw.call(func(h app.Handlers) { h.OnNextPage() }, mw.handlers.OnNextPage != nil)
	})
	mw.prevBtn.Disable()
	mw.nextBtn.Disable()

	mw.selectionLabel = widget.NewLabel("")

	mw.emptyState = widget.NewLabel("")
	mw.emptyState.Alignment = fyne.TextAlignCenter
	mw.emptyState.TextStyle = fyne.TextStyle{Italic: true}
	mw.emptyState.Hide()

	// File list
	mw.fileList = widget.NewList(
		func() int { return len(mw.state.Items) },
		func() fyne.CanvasObject { return mw.createFileListItem() },
		func(id widget.ListItemID, obj fyne.CanvasObject) { mw.updateFileListItem(id, obj) },
	)
}

// call invokes fn when the handler it needs has been wired
func (mw *MainWindow) call(fn func(h app.Handlers), wired bool) {
	if wired {
		fn(mw.handlers)
	}
}

func (mw *MainWindow) createLayout() fyne.CanvasObject {
	title := widget.NewLabel(appTitle)
	title.TextStyle = fyne.TextStyle{Bold: true}

	toolbar := container.NewHBox(
		mw.uploadBtn,
		mw.refreshBtn,
		widget.NewSeparator(),
		mw.selectPageBtn,
		mw.clearBtn,
		mw.deleteBtn,
		layout.NewSpacer(),
		mw.logoutBtn,
	)

	filters := container.NewBorder(nil, nil, nil, mw.typeSelect, mw.searchEntry)

	sortRow := container.NewHBox(widget.NewLabel("Sort by:"))
	for _, col := range sortColumns {
		sortRow.Add(mw.sortBtns[col.field])
	}
	sortRow.Add(layout.NewSpacer())
	sortRow.Add(mw.selectionLabel)

	pagination := container.NewHBox(layout.NewSpacer(), mw.prevBtn, mw.pageLabel, mw.nextBtn, layout.NewSpacer())

	fileContainer := container.NewStack(
		mw.fileList,
		container.NewCenter(mw.emptyState),
	)

	return container.NewBorder(
		container.NewVBox(title, widget.NewSeparator(), toolbar, filters, sortRow, widget.NewSeparator()),
		container.NewVBox(widget.NewSeparator(), pagination, mw.statusLabel),
		nil, nil,
		fileContainer,
	)
}

func (mw *MainWindow) createFileListItem() fyne.CanvasObject {
	check := widget.NewCheck("", nil)

	icon := widget.NewIcon(theme.DocumentIcon())

	nameLabel := widget.NewLabel("Filename")
	nameLabel.TextStyle = fyne.TextStyle{Bold: true}
	nameLabel.Truncation = fyne.TextTruncateEllipsis
	detailLabel := widget.NewLabel("Details")

	previewBtn := widget.NewButtonWithIcon("", theme.VisibilityIcon(), nil)
	downloadBtn := widget.NewButtonWithIcon("", theme.DownloadIcon(), nil)
	deleteBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)
	deleteBtn.Importance = widget.DangerImportance

	return container.NewBorder(
		nil, nil,
		container.NewHBox(check, icon),
		container.NewHBox(previewBtn, downloadBtn, deleteBtn),
		container.NewVBox(nameLabel, detailLabel),
	)
}

func (mw *MainWindow) updateFileListItem(id widget.ListItemID, obj fyne.CanvasObject) {
	if id >= len(mw.state.Items) {
		return
	}

	file := mw.state.Items[id]
	border := obj.(*fyne.Container)

	left := border.Objects[1].(*fyne.Container)
	actions := border.Objects[2].(*fyne.Container)
	info := border.Objects[0].(*fyne.Container)

	check := left.Objects[0].(*widget.Check)
	check.OnChanged = nil
	check.SetChecked(mw.state.IsSelected(file.ID))
	check.OnChanged = func(checked bool) {
		if checked != mw.state.IsSelected(file.ID) {
			mw.call(func(h app.Handlers) { h.OnToggleSelected(file.ID) }, mw.handlers.OnToggleSelected != nil)
		}
	}
	left.Objects[1].(*widget.Icon).SetResource(fileIcon(file.Category()))

	info.Objects[0].(*widget.Label).SetText(file.OriginalName)
	info.Objects[1].(*widget.Label).SetText(fileDetails(file, time.Now()))

	actions.Objects[0].(*widget.Button).OnTapped = func() {
		rec := file
		mw.call(func(h app.Handlers) { h.OnOpenPreview(&rec) }, mw.handlers.OnOpenPreview != nil)
	}
	actions.Objects[1].(*widget.Button).OnTapped = func() { mw.saveFile(file) }
	actions.Objects[2].(*widget.Button).OnTapped = func() {
		mw.call(func(h app.Handlers) { h.OnDelete(file) }, mw.handlers.OnDelete != nil)
	}
}

// saveFile asks for a destination and hands it to the download handler
func (mw *MainWindow) saveFile(file models.FileRecord) {
	if mw.handlers.OnDownload == nil {
		return
	}
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, mw.window)
			return
		}
		if writer == nil {
			return // cancelled
		}
		mw.handlers.OnDownload(file, writer)
	}, mw.window)
	save.SetFileName(file.OriginalName)
	save.Show()
}

func (mw *MainWindow) login(username, password string) {
	mw.call(func(h app.Handlers) { h.OnLogin(username, password) }, mw.handlers.OnLogin != nil)
}

// applyList pushes mw.state into the widgets
func (mw *MainWindow) applyList() {
	s := mw.state
	q := s.Query

	for _, col := range sortColumns {
		mw.sortBtns[col.field].SetText(sortLabel(col.title, col.field, q))
	}

	pages := s.TotalPages()
	mw.pageLabel.SetText(fmt.Sprintf("Page %d of %d", q.Page, pages))
	setEnabled(mw.prevBtn, q.Page > 1 && !s.Loading)
	setEnabled(mw.nextBtn, q.Page < pages && !s.Loading)

	if s.Empty() {
		mw.emptyState.SetText(emptyMessage(q))
		mw.emptyState.Show()
		mw.fileList.Hide()
	} else {
		mw.emptyState.Hide()
		mw.fileList.Show()
	}

	mw.applySelection()
	mw.fileList.Refresh()
}

func (mw *MainWindow) applySelection() {
	n := mw.state.SelectedCount()
	if n == 0 {
		mw.selectionLabel.SetText("")
	} else {
		mw.selectionLabel.SetText(fmt.Sprintf("%d selected", n))
	}
	setEnabled(mw.deleteBtn, n > 0)
	setEnabled(mw.clearBtn, n > 0)
}

func setEnabled(w fyne.Disableable, enabled bool) {
	if enabled {
		w.Enable()
	} else {
		w.Disable()
	}
}

// sortLabel marks the active sort column with its direction
func sortLabel(title, field string, q models.ListQuery) string {
	if q.SortBy != field {
		return title
	}
	if q.SortOrder == models.SortAsc {
		return title + " ↑"
	}
	return title + " ↓"
}

func emptyMessage(q models.ListQuery) string {
	if q.Search != "" || q.Type != models.CategoryAll {
		return "No documents match your filters."
	}
	return "No documents yet. Click 'Upload' to add one."
}

func fileDetails(f models.FileRecord, now time.Time) string {
	visibility := "private"
	if f.IsPublic {
		visibility = "public"
	}
	return fmt.Sprintf("%s • %s • %s • %d downloads • %s",
		formatFileSize(f.Size), f.Category().Label(), formatRelativeTime(f.CreatedAt, now), f.DownloadCount, visibility)
}

func fileIcon(c models.FileCategory) fyne.Resource {
	switch c {
	case models.CategoryImage:
		return theme.FileImageIcon()
	case models.CategoryVideo:
		return theme.FileVideoIcon()
	case models.CategoryAudio:
		return theme.FileAudioIcon()
	case models.CategoryDocument:
		return theme.FileTextIcon()
	default:
		return theme.FileIcon()
	}
}

// Utility functions for formatting
func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2 Jan 2006")
	}
}
