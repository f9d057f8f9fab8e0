package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"doc-manager-app/internal/app"
	"doc-manager-app/internal/auth"
	"doc-manager-app/internal/controller"
	"doc-manager-app/internal/models"
)

const rootFolderLabel = "(root)"

// UploadDialog shows the upload queue with per-file progress, the tag set
// and the metadata applied to the whole run.
type UploadDialog struct {
	window fyne.Window
	dialog *dialog.CustomDialog
	accept []string

	// UI components
	queueList        *widget.List
	tagEntry         *widget.Entry
	addTagBtn        *widget.Button
	tagList          *widget.List
	descriptionEntry *widget.Entry
	publicCheck      *widget.Check
	folderSelect     *widget.Select
	selectFileBtn    *widget.Button
	uploadBtn        *widget.Button
	closeBtn         *widget.Button
	summaryLabel     *widget.Label

	// Data
	state    controller.UploadState
	folders  []models.FolderRecord
	handlers app.Handlers
	visible  bool
}

// NewUploadDialog creates a new file upload dialog
func NewUploadDialog(parent fyne.Window, accept []string) *UploadDialog {
	d := &UploadDialog{
		window: parent,
		accept: accept,
	}

	d.setupDialog()
	return d
}

// SetHandlers wires the dialog to the application
func (d *UploadDialog) SetHandlers(h app.Handlers) {
	d.handlers = h
}

// Show displays the upload dialog
func (d *UploadDialog) Show() {
	d.visible = true
	d.dialog.Show()
}

// Hide closes the upload dialog without touching the queue
func (d *UploadDialog) Hide() {
	d.visible = false
	d.dialog.Hide()
}

// Visible reports whether the dialog is open
func (d *UploadDialog) Visible() bool {
	return d.visible
}

// Update renders a queue snapshot
func (d *UploadDialog) Update(state controller.UploadState) {
	d.state = state
	d.queueList.Refresh()
	d.tagList.Refresh()

	pending := 0
	for _, t := range state.Tasks {
		if t.Status == models.UploadPending {
			pending++
		}
	}
	d.summaryLabel.SetText(queueSummary(state))

	setEnabled(d.uploadBtn, pending > 0 && !state.Running)
	setEnabled(d.selectFileBtn, !state.Running)
	setEnabled(d.folderSelect, !state.Running)
	if state.Running {
		d.uploadBtn.SetText("Uploading...")
	} else {
		d.uploadBtn.SetText("Upload")
	}
}

// SetFolders fills the target folder picker
func (d *UploadDialog) SetFolders(folders []models.FolderRecord) {
	d.folders = folders
	options := []string{rootFolderLabel}
	for _, f := range folders {
		options = append(options, folderLabel(f))
	}
	d.folderSelect.SetOptions(options)
	d.folderSelect.SetSelected(rootFolderLabel)
}

func (d *UploadDialog) setupDialog() {
	d.selectFileBtn = widget.NewButtonWithIcon("Add files", theme.FolderOpenIcon(), d.selectFile)

	d.summaryLabel = widget.NewLabel(queueSummary(controller.UploadState{}))
	d.summaryLabel.TextStyle = fyne.TextStyle{Italic: true}

	d.queueList = widget.NewList(
		func() int { return len(d.state.Tasks) },
		func() fyne.CanvasObject { return d.createTaskItem() },
		func(id widget.ListItemID, obj fyne.CanvasObject) { d.updateTaskItem(id, obj) },
	)

	// Tags
	d.tagEntry = widget.NewEntry()
	d.tagEntry.SetPlaceHolder("Add a tag...")
	d.tagEntry.OnSubmitted = func(string) { d.addTag() }
	d.addTagBtn = widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), d.addTag)

	d.tagList = widget.NewList(
		func() int { return len(d.state.Tags) },
		func() fyne.CanvasObject { return d.createTagItem() },
		func(id widget.ListItemID, obj fyne.CanvasObject) { d.updateTagItem(id, obj) },
	)

	// Metadata
	d.descriptionEntry = widget.NewMultiLineEntry()
	d.descriptionEntry.SetPlaceHolder("Description (optional)")
	d.publicCheck = widget.NewCheck("Public document", nil)
	d.folderSelect = widget.NewSelect([]string{rootFolderLabel}, nil)
	d.folderSelect.SetSelected(rootFolderLabel)

	// Action buttons
	d.uploadBtn = widget.NewButtonWithIcon("Upload", theme.UploadIcon(), d.startUpload)
	d.uploadBtn.Importance = widget.HighImportance
	d.uploadBtn.Disable()

	d.closeBtn = widget.NewButton("Close", d.close)

	queueSection := container.NewBorder(
		container.NewBorder(nil, nil, nil, d.selectFileBtn, d.summaryLabel),
		nil, nil, nil,
		container.NewScroll(d.queueList),
	)

	tagSection := container.NewVBox(
		widget.NewLabelWithStyle("Tags", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewBorder(nil, nil, nil, d.addTagBtn, d.tagEntry),
		container.NewGridWrap(fyne.NewSize(520, 90), container.NewScroll(d.tagList)),
	)

	metaSection := widget.NewForm(
		widget.NewFormItem("Folder", d.folderSelect),
		widget.NewFormItem("Description", d.descriptionEntry),
		widget.NewFormItem("", d.publicCheck),
	)

	buttonSection := container.NewHBox(
		d.closeBtn,
		widget.NewSeparator(),
		d.uploadBtn,
	)

	content := container.NewBorder(
		nil,
		container.NewVBox(widget.NewSeparator(), tagSection, metaSection, widget.NewSeparator(), buttonSection),
		nil, nil,
		queueSection,
	)

	d.dialog = dialog.NewCustomWithoutButtons("Upload Documents", content, d.window)
	d.dialog.Resize(fyne.NewSize(600, 640))
}

func (d *UploadDialog) createTaskItem() fyne.CanvasObject {
	nameLabel := widget.NewLabel("file")
	nameLabel.Truncation = fyne.TextTruncateEllipsis
	statusLabel := widget.NewLabel("pending")
	progressBar := widget.NewProgressBar()

	removeBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)
	removeBtn.Importance = widget.DangerImportance

	return container.NewBorder(
		nil, nil, nil,
		container.NewHBox(statusLabel, removeBtn),
		container.NewVBox(nameLabel, progressBar),
	)
}

func (d *UploadDialog) updateTaskItem(id widget.ListItemID, obj fyne.CanvasObject) {
	if id >= len(d.state.Tasks) {
		return
	}

	task := d.state.Tasks[id]
	border := obj.(*fyne.Container)
	info := border.Objects[0].(*fyne.Container)
	right := border.Objects[1].(*fyne.Container)

	info.Objects[0].(*widget.Label).SetText(fmt.Sprintf("%s (%s)", task.File.Name, formatFileSize(task.File.Size)))
	info.Objects[1].(*widget.ProgressBar).SetValue(float64(task.Progress) / 100)
	right.Objects[0].(*widget.Label).SetText(taskStatus(task))

	removeBtn := right.Objects[1].(*widget.Button)
	removeBtn.OnTapped = func() {
		if d.handlers.OnRemoveTask != nil {
			d.handlers.OnRemoveTask(task.ID)
		}
	}
	setEnabled(removeBtn, task.Status == models.UploadPending && !d.state.Running)
}

func (d *UploadDialog) createTagItem() fyne.CanvasObject {
	tagLabel := widget.NewLabel("tag")

	removeBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)
	removeBtn.Importance = widget.DangerImportance

	return container.NewBorder(nil, nil, nil, removeBtn, tagLabel)
}

func (d *UploadDialog) updateTagItem(id widget.ListItemID, obj fyne.CanvasObject) {
	if id >= len(d.state.Tags) {
		return
	}

	tag := d.state.Tags[id]
	border := obj.(*fyne.Container)
	border.Objects[0].(*widget.Label).SetText(tag)
	border.Objects[1].(*widget.Button).OnTapped = func() {
		if d.handlers.OnRemoveTag != nil {
			d.handlers.OnRemoveTag(tag)
		}
	}
}

func (d *UploadDialog) addTag() {
	tag := strings.TrimSpace(d.tagEntry.Text)
	if tag == "" || d.handlers.OnAddTag == nil {
		return
	}
	d.handlers.OnAddTag(tag)
	d.tagEntry.SetText("")
}

func (d *UploadDialog) selectFile() {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, d.window)
			return
		}
		if reader == nil {
			return // cancelled
		}
		path := reader.URI().Path()
		_ = reader.Close()

		file, err := models.LocalFileFromPath(path)
		if err != nil {
			dialog.ShowError(err, d.window)
			return
		}
		if d.handlers.OnAddFiles != nil {
			d.handlers.OnAddFiles([]models.LocalFile{file})
		}
	}, d.window)

	if exts := extensionFilter(d.accept); len(exts) > 0 {
		fileDialog.SetFilter(storage.NewExtensionFileFilter(exts))
	}

	fileDialog.Show()
}

func (d *UploadDialog) startUpload() {
	if d.handlers.OnStartUpload == nil {
		return
	}
	d.handlers.OnStartUpload(d.metadata())
}

// metadata collects the run-wide fields. Tags live in the controller.
func (d *UploadDialog) metadata() models.UploadMetadata {
	meta := models.UploadMetadata{
		Description: strings.TrimSpace(d.descriptionEntry.Text),
		IsPublic:    d.publicCheck.Checked,
	}
	for _, f := range d.folders {
		if folderLabel(f) == d.folderSelect.Selected {
			meta.FolderID = f.ID
			break
		}
	}
	return meta
}

// close dismisses the queue. An in-flight upload finishes on its own.
func (d *UploadDialog) close() {
	if d.handlers.OnDismissUpload != nil {
		d.handlers.OnDismissUpload()
	}
	d.descriptionEntry.SetText("")
	d.publicCheck.SetChecked(false)
	d.Hide()
	if d.handlers.OnNavigate != nil {
		d.handlers.OnNavigate(auth.RouteFiles)
	}
}

func folderLabel(f models.FolderRecord) string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}

// extensionFilter keeps the ".ext" entries of an accept list. MIME entries
// cannot be expressed as a picker filter and are checked after selection.
func extensionFilter(accept []string) []string {
	var exts []string
	for _, a := range accept {
		if strings.HasPrefix(a, ".") {
			exts = append(exts, strings.ToLower(a))
		} else {
			// a MIME entry admits files the picker cannot name
			return nil
		}
	}
	return exts
}

func taskStatus(t models.UploadTask) string {
	switch t.Status {
	case models.UploadUploading:
		return fmt.Sprintf("%d%%", t.Progress)
	case models.UploadSucceeded:
		return "Uploaded"
	case models.UploadFailed:
		return "Failed"
	default:
		return "Waiting"
	}
}

func queueSummary(s controller.UploadState) string {
	if len(s.Tasks) == 0 {
		return "No files queued"
	}
	done := 0
	for _, t := range s.Tasks {
		if t.Done() {
			done++
		}
	}
	if s.Running && done < len(s.Tasks) {
		return fmt.Sprintf("Uploading %d of %d files", done+1, len(s.Tasks))
	}
	return fmt.Sprintf("%d files queued", len(s.Tasks))
}
