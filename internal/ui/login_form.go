package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// LoginForm is the sign-in screen
type LoginForm struct {
	content fyne.CanvasObject

	// Form widgets
	usernameEntry *widget.Entry
	passwordEntry *widget.Entry
	signInBtn     *widget.Button

	onSubmit func(username, password string)
}

// NewLoginForm creates the sign-in screen. onSubmit receives the trimmed
// username and the password as typed.
func NewLoginForm(onSubmit func(username, password string)) *LoginForm {
	f := &LoginForm{onSubmit: onSubmit}
	f.createForm()
	return f
}

// Content returns the screen to place in the window
func (f *LoginForm) Content() fyne.CanvasObject {
	return f.content
}

// Reset clears the password and re-enables the form
func (f *LoginForm) Reset() {
	f.passwordEntry.SetText("")
	f.SetEnabled(true)
}

// SetEnabled locks the form while a sign in is in flight
func (f *LoginForm) SetEnabled(enabled bool) {
	if enabled {
		f.usernameEntry.Enable()
		f.passwordEntry.Enable()
		f.validate()
		return
	}
	f.usernameEntry.Disable()
	f.passwordEntry.Disable()
	f.signInBtn.Disable()
}

func (f *LoginForm) createForm() {
	f.usernameEntry = widget.NewEntry()
	f.usernameEntry.SetPlaceHolder("Username")
	f.usernameEntry.OnChanged = func(string) { f.validate() }

	f.passwordEntry = widget.NewPasswordEntry()
	f.passwordEntry.SetPlaceHolder("Password")
	f.passwordEntry.OnChanged = func(string) { f.validate() }
	f.passwordEntry.OnSubmitted = func(string) { f.submit() }

	f.signInBtn = widget.NewButtonWithIcon("Sign in", theme.LoginIcon(), f.submit)
	f.signInBtn.Importance = widget.HighImportance
	f.signInBtn.Disable()

	card := widget.NewCard(appTitle, "Sign in to access your documents",
		container.NewVBox(
			widget.NewForm(
				widget.NewFormItem("Username", f.usernameEntry),
				widget.NewFormItem("Password", f.passwordEntry),
			),
			f.signInBtn,
		),
	)

	f.content = container.NewCenter(container.NewGridWrap(fyne.NewSize(420, 260), card))
}

func (f *LoginForm) validate() {
	if strings.TrimSpace(f.usernameEntry.Text) != "" && f.passwordEntry.Text != "" {
		f.signInBtn.Enable()
	} else {
		f.signInBtn.Disable()
	}
}

func (f *LoginForm) submit() {
	if f.signInBtn.Disabled() || f.onSubmit == nil {
		return
	}
	f.onSubmit(strings.TrimSpace(f.usernameEntry.Text), f.passwordEntry.Text)
}
