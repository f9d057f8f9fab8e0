package ui

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"doc-manager-app/internal/controller"
	"doc-manager-app/pkg/errors"
)

// maxTextPreview bounds how much of a text file is rendered
const maxTextPreview = 64 << 10

// PreviewDialog renders the preview panel for one file
type PreviewDialog struct {
	window fyne.Window
	dialog *dialog.CustomDialog

	title    *widget.Label
	body     *fyne.Container
	retryBtn *widget.Button
	closeBtn *widget.Button

	onRetry func()
	onClose func()
	status  controller.PreviewStatus
	visible bool
}

// NewPreviewDialog creates the preview dialog
func NewPreviewDialog(parent fyne.Window) *PreviewDialog {
	d := &PreviewDialog{window: parent, status: controller.PreviewNoContent}

	d.title = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	d.title.Truncation = fyne.TextTruncateEllipsis
	d.body = container.NewStack()
	d.retryBtn = widget.NewButtonWithIcon("Retry", theme.ViewRefreshIcon(), func() {
		if d.onRetry != nil {
			d.onRetry()
		}
	})
	d.retryBtn.Hide()
	d.closeBtn = widget.NewButton("Close", func() {
		if d.onClose != nil {
			d.onClose()
		} else {
			d.Hide()
		}
	})

	content := container.NewBorder(
		d.title,
		container.NewHBox(d.retryBtn, d.closeBtn),
		nil, nil,
		d.body,
	)
	d.dialog = dialog.NewCustomWithoutButtons("Preview", content, parent)
	d.dialog.Resize(fyne.NewSize(720, 600))
	return d
}

// SetHandlers wires retry and close
func (d *PreviewDialog) SetHandlers(onRetry, onClose func()) {
	d.onRetry = onRetry
	d.onClose = onClose
}

// Hide closes the dialog
func (d *PreviewDialog) Hide() {
	d.visible = false
	d.dialog.Hide()
}

// Visible reports whether the dialog is open
func (d *PreviewDialog) Visible() bool {
	return d.visible
}

// Update renders a preview snapshot; no-content closes the dialog
func (d *PreviewDialog) Update(state controller.PreviewState) {
	d.status = state.Status
	if state.Status == controller.PreviewNoContent {
		d.Hide()
		return
	}

	if state.File != nil {
		d.title.SetText(state.File.OriginalName)
	}
	d.body.Objects = []fyne.CanvasObject{previewBody(state)}
	d.body.Refresh()

	if state.Status == controller.PreviewError {
		d.retryBtn.Show()
	} else {
		d.retryBtn.Hide()
	}

	if !d.visible {
		d.visible = true
		d.dialog.Show()
	}
}

// previewBody builds the widget for a state
func previewBody(state controller.PreviewState) fyne.CanvasObject {
	switch state.Status {
	case controller.PreviewLoading:
		return container.NewCenter(container.NewVBox(
			widget.NewProgressBarInfinite(),
			widget.NewLabelWithStyle("Loading preview...", fyne.TextAlignCenter, fyne.TextStyle{}),
		))
	case controller.PreviewError:
		msg := "The preview could not be loaded."
		if state.Err != nil {
			msg = errors.ClassifyError(state.Err).GetUserMessage()
		}
		label := widget.NewLabel(msg)
		label.Wrapping = fyne.TextWrapWord
		return container.NewCenter(container.NewVBox(widget.NewIcon(theme.ErrorIcon()), label))
	case controller.PreviewNoContent:
		return widget.NewLabel("")
	}

	// ready
	switch state.Strategy.Kind {
	case controller.StrategyImageEmbed:
		if state.Content != nil && len(state.Content.Data) > 0 {
			name := state.Content.FileID
			if state.File != nil {
				name = state.File.OriginalName
			}
			img := canvas.NewImageFromResource(fyne.NewStaticResource(name, state.Content.Data))
			img.FillMode = canvas.ImageFillContain
			return img
		}
		return documentLink(state.Strategy.URL)
	case controller.StrategyDocumentFrame:
		if state.Content != nil && isText(state.Content.ContentType) {
			return textPreview(state.Content.Data)
		}
		return documentLink(state.Strategy.URL)
	default:
		label := widget.NewLabel(state.Strategy.Message)
		label.Wrapping = fyne.TextWrapWord
		return container.NewCenter(container.NewVBox(widget.NewIcon(theme.WarningIcon()), label))
	}
}

func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/")
}

func textPreview(data []byte) fyne.CanvasObject {
	truncated := false
	if len(data) > maxTextPreview {
		data = data[:maxTextPreview]
		truncated = true
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	if truncated {
		text += "\n…"
	}

	grid := widget.NewTextGridFromString(text)
	return container.NewScroll(grid)
}

// documentLink offers the file in the system viewer when it cannot be
// rendered inline
func documentLink(raw string) fyne.CanvasObject {
	label := widget.NewLabel("This document opens in your default viewer.")
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return container.NewCenter(label)
	}
	return container.NewCenter(container.NewVBox(
		widget.NewIcon(theme.DocumentIcon()),
		label,
		widget.NewHyperlink("Open document", u),
	))
}

// Status is the state last rendered
func (d *PreviewDialog) Status() controller.PreviewStatus {
	return d.status
}
