package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storefront/internal/account"
)

type loginResultMsg struct {
	username string
	err      error
}

type loginView struct {
	app      *App
	inputs   []textinput.Model
	focused  int
	errs     map[string]string
	inflight bool
}

func newLoginView(app *App) *loginView {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "User name  "
	username.CharLimit = 64
	username.Cursor.SetMode(cursor.CursorStatic)

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password   "
	password.CharLimit = 64
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.Cursor.SetMode(cursor.CursorStatic)

	return &loginView{
		app:    app,
		inputs: []textinput.Model{username, password},
		errs:   map[string]string{},
	}
}

func (v *loginView) Focus() tea.Cmd {
	v.inputs[1].SetValue("")
	v.errs = map[string]string{}
	v.inflight = false
	return v.focusInput(0)
}

func (v *loginView) focusInput(idx int) tea.Cmd {
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

func (v *loginView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case loginResultMsg:
		v.inflight = false
		if m.err != nil {
			var verr *account.ValidationError
			if errors.As(m.err, &verr) {
				v.errs = verr.Fields
				return nil
			}
			v.app.showAlert(account.UserMessage(m.err))
			return nil
		}
		v.app.statusMsg = "Logged in successfully"
		return v.app.focus(stateHome)

	case tea.KeyMsg:
		switch m.String() {
		case "tab", "down":
			return v.focusInput((v.focused + 1) % len(v.inputs))
		case "shift+tab", "up":
			return v.focusInput((v.focused + len(v.inputs) - 1) % len(v.inputs))
		case "enter":
			if v.focused == 0 {
				return v.focusInput(1)
			}
			return v.submit()
		case "ctrl+n":
			return v.app.navigate(stateSignup)
		case "esc":
			return tea.Quit
		}
		var cmd tea.Cmd
		v.inputs[v.focused], cmd = v.inputs[v.focused].Update(m)
		return cmd
	}
	return nil
}

func (v *loginView) submit() tea.Cmd {
	if v.inflight {
		return nil
	}
	creds := account.Credentials{
		Username: strings.TrimSpace(v.inputs[0].Value()),
		Password: strings.TrimSpace(v.inputs[1].Value()),
	}
	if err := account.ValidateCredentials(creds); err != nil {
		var verr *account.ValidationError
		if errors.As(err, &verr) {
			v.errs = verr.Fields
		}
		return nil
	}
	v.errs = map[string]string{}
	v.inflight = true
	app := v.app
	return app.track(func() tea.Msg {
		return loginResultMsg{username: creds.Username, err: app.deps.Account.Login(app.ctx, creds)}
	})
}

func (v *loginView) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Welcome back"))
	b.WriteString("\n\n")
	for i, field := range []string{"username", "password"} {
		b.WriteString(v.inputs[i].View())
		b.WriteString("\n")
		if msg := v.errs[field]; msg != "" {
			b.WriteString(errorStyle.Render("  " + msg))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("tab switch field · enter log in · ctrl+n sign up · esc quit"))
	return b.String()
}
