package views

import (
	"fmt"

	"github.com/rivo/tview"
)

// AuthView is the email/password sign-in form.
type AuthView struct {
	*tview.Flex
	form    *tview.Form
	message *tview.TextView

	onSignIn func(email, password string)
	onSignUp func(email, password, displayName string)
}

// NewAuthView creates the sign-in form. The name field is only used
// for sign-up.
func NewAuthView() *AuthView {
	av := &AuthView{}

	av.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	av.form = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddInputField("Name", "", 40, nil, nil)
	av.form.AddButton("Sign In", func() {
		email, password, _ := av.fields()
		if av.onSignIn != nil {
			av.onSignIn(email, password)
		}
	})
	av.form.AddButton("Sign Up", func() {
		email, password, name := av.fields()
		if av.onSignUp != nil {
			av.onSignUp(email, password, name)
		}
	})
	av.form.SetBorder(true).SetTitle(" Sign In ")

	av.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(av.form, 0, 3, true).
		AddItem(av.message, 3, 0, false)

	return av
}

func (av *AuthView) fields() (string, string, string) {
	email := av.form.GetFormItemByLabel("Email").(*tview.InputField).GetText()
	password := av.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
	name := av.form.GetFormItemByLabel("Name").(*tview.InputField).GetText()
	return email, password, name
}

// SetOnSignIn sets the sign-in callback.
func (av *AuthView) SetOnSignIn(fn func(email, password string)) {
	av.onSignIn = fn
}

// SetOnSignUp sets the sign-up callback.
func (av *AuthView) SetOnSignUp(fn func(email, password, displayName string)) {
	av.onSignUp = fn
}

// Form returns the form for focus management.
func (av *AuthView) Form() *tview.Form {
	return av.form
}

// ShowMessage displays a status message below the form.
func (av *AuthView) ShowMessage(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprint(av.message, msg)
}

// ShowError displays an error message below the form.
func (av *AuthView) ShowError(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "[red]%s[-]", msg)
}
