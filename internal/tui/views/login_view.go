package views

import (
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView asks for the credentials the daemon signs in with.
type LoginView struct {
	*tview.Form
	theme    *ui.Theme
	onSubmit func(email, password string)
}

// NewLoginView creates a new login form. email pre-fills the address field.
func NewLoginView(theme *ui.Theme, email string) *LoginView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" Sign In ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	lv := &LoginView{Form: form, theme: theme}
	form.AddInputField("Email", email, 40, nil, nil)
	form.AddPasswordField("Password", "", 40, '*', nil)
	form.AddButton("Sign in", lv.submit)
	if email != "" {
		form.SetFocus(1)
	}
	return lv
}

// Name implements ui.Component.
func (lv *LoginView) Name() string { return "Sign In" }

// Hints implements ui.Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Sign in"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnSubmit sets the callback run with the entered credentials.
func (lv *LoginView) SetOnSubmit(fn func(email, password string)) {
	lv.onSubmit = fn
}

// ClearPassword empties the password field.
func (lv *LoginView) ClearPassword() {
	if f, ok := lv.GetFormItemByLabel("Password").(*tview.InputField); ok {
		f.SetText("")
	}
}

func (lv *LoginView) submit() {
	if lv.onSubmit == nil {
		return
	}
	var email, password string
	if f, ok := lv.GetFormItemByLabel("Email").(*tview.InputField); ok {
		email = f.GetText()
	}
	if f, ok := lv.GetFormItemByLabel("Password").(*tview.InputField); ok {
		password = f.GetText()
	}
	lv.onSubmit(email, password)
}
