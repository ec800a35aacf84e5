package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storefront/internal/account"
)

type signedUpMsg struct {
	username string
	id       int
	err      error
}

type profileSavedMsg struct {
	user account.User
	err  error
}

// accountForm is either the signup screen or the profile editor. Both collect
// the same fields; only signup asks for a password.
type accountForm int

const (
	signupForm accountForm = iota
	profileForm
)

type formField struct {
	key    string
	prompt string
	secret bool
}

var accountFields = []formField{
	{key: "username", prompt: "User name  "},
	{key: "email", prompt: "Email      "},
	{key: "phone", prompt: "Phone      "},
	{key: "city", prompt: "City       "},
	{key: "street", prompt: "Street     "},
	{key: "password", prompt: "Password   ", secret: true},
}

type accountFormView struct {
	app      *App
	kind     accountForm
	fields   []formField
	inputs   []textinput.Model
	focused  int
	errs     map[string]string
	inflight bool
}

func newAccountFormView(app *App, kind accountForm) *accountFormView {
	v := &accountFormView{app: app, kind: kind, errs: map[string]string{}}
	for _, f := range accountFields {
		if f.secret && kind == profileForm {
			continue
		}
		in := textinput.New()
		in.Placeholder = f.key
		in.Prompt = f.prompt
		in.CharLimit = 128
		if f.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		in.Cursor.SetMode(cursor.CursorStatic)
		v.fields = append(v.fields, f)
		v.inputs = append(v.inputs, in)
	}
	return v
}

// Focus empties the signup form, or fills the editor from the last loaded
// profile.
func (v *accountFormView) Focus() tea.Cmd {
	v.errs = map[string]string{}
	v.inflight = false
	var u account.User
	if v.kind == profileForm && v.app.profile.loaded {
		u = v.app.profile.user
	}
	values := map[string]string{
		"username": u.Username,
		"email":    u.Email,
		"phone":    u.Phone,
		"city":     u.Address.City,
		"street":   u.Address.Street,
	}
	for i, f := range v.fields {
		v.inputs[i].SetValue(values[f.key])
		v.inputs[i].CursorEnd()
	}
	return v.focusInput(0)
}

func (v *accountFormView) focusInput(idx int) tea.Cmd {
	v.focused = idx
	var cmd tea.Cmd
	for i := range v.inputs {
		if i == idx {
			cmd = v.inputs[i].Focus()
		} else {
			v.inputs[i].Blur()
		}
	}
	return cmd
}

func (v *accountFormView) value(key string) string {
	for i, f := range v.fields {
		if f.key == key {
			return strings.TrimSpace(v.inputs[i].Value())
		}
	}
	return ""
}

func (v *accountFormView) form() account.SignupForm {
	return account.SignupForm{
		Email:    v.value("email"),
		Username: v.value("username"),
		Password: v.value("password"),
		City:     v.value("city"),
		Street:   v.value("street"),
		Phone:    v.value("phone"),
	}
}

func (v *accountFormView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case signedUpMsg:
		if v.kind != signupForm {
			return nil
		}
		v.inflight = false
		if v.failed(m.err) {
			return nil
		}
		v.app.login.inputs[0].SetValue(m.username)
		cmd := v.app.focus(stateLogin)
		v.app.statusMsg = "Account created. Log in to continue."
		return cmd

	case profileSavedMsg:
		if v.kind != profileForm {
			return nil
		}
		v.inflight = false
		if v.failed(m.err) {
			return nil
		}
		v.app.profile.user = m.user
		cmd := v.app.back()
		v.app.statusMsg = "Profile updated"
		return cmd

	case tea.KeyMsg:
		switch m.String() {
		case "tab", "down":
			return v.focusInput((v.focused + 1) % len(v.inputs))
		case "shift+tab", "up":
			return v.focusInput((v.focused + len(v.inputs) - 1) % len(v.inputs))
		case "enter":
			if v.focused < len(v.inputs)-1 {
				return v.focusInput(v.focused + 1)
			}
			return v.submit()
		case "esc":
			return v.app.back()
		}
		var cmd tea.Cmd
		v.inputs[v.focused], cmd = v.inputs[v.focused].Update(m)
		return cmd
	}
	return nil
}

// failed shows field errors inline and anything else as an alert.
func (v *accountFormView) failed(err error) bool {
	if err == nil {
		return false
	}
	var verr *account.ValidationError
	if errors.As(err, &verr) {
		v.errs = verr.Fields
		return true
	}
	v.app.showAlert(account.UserMessage(err))
	return true
}

func (v *accountFormView) submit() tea.Cmd {
	if v.inflight {
		return nil
	}
	form := v.form()
	check := form.Validate
	if v.kind == profileForm {
		check = form.ValidateProfile
	}
	if v.failed(check()) {
		return nil
	}
	v.errs = map[string]string{}
	v.inflight = true
	app := v.app
	if v.kind == profileForm {
		return app.track(func() tea.Msg {
			user, err := app.deps.Account.UpdateProfile(app.ctx, form)
			return profileSavedMsg{user: user, err: err}
		})
	}
	return app.track(func() tea.Msg {
		id, err := app.deps.Account.Signup(app.ctx, form)
		return signedUpMsg{username: form.Username, id: id, err: err}
	})
}

func (v *accountFormView) View() string {
	var b strings.Builder
	title, action := "Create an account", "sign up"
	if v.kind == profileForm {
		title, action = "Edit profile", "save"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	for i, f := range v.fields {
		b.WriteString(v.inputs[i].View())
		b.WriteString("\n")
		if msg := v.errs[f.key]; msg != "" {
			b.WriteString(errorStyle.Render("  " + msg))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("tab switch field · enter on the last field to " + action + " · esc back"))
	return b.String()
}
