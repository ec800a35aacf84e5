package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storefront/internal/account"
	"github.com/kingrea/storefront/internal/logbook"
	"github.com/kingrea/storefront/internal/orders"
)

type profileLoadedMsg struct {
	user account.User
	err  error
}

type loggedOutMsg struct {
	err error
}

type profileView struct {
	app    *App
	user   account.User
	loaded bool
	err    error
	recent []logbook.Entry
	orders []orders.Record
}

func newProfileView(app *App) *profileView {
	return &profileView{app: app}
}

func (v *profileView) Focus() tea.Cmd {
	if book := v.app.journal(); book != nil {
		v.recent = book.Recent(1)
	}
	if v.app.deps.Orders != nil {
		v.orders = v.app.deps.Orders.Recent(3)
	}
	app := v.app
	return app.track(func() tea.Msg {
		user, err := app.deps.Account.Profile(app.ctx)
		return profileLoadedMsg{user: user, err: err}
	})
}

func (v *profileView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case profileLoadedMsg:
		v.err = m.err
		if m.err == nil {
			v.user = m.user
			v.loaded = true
		}
		return nil

	case tea.KeyMsg:
		switch m.String() {
		case "o":
			v.app.ask("Log out and clear local data?", v.logout)
		case "e":
			if v.loaded {
				return v.app.navigate(stateEditProfile)
			}
		case "r":
			return v.Focus()
		}
	}
	return nil
}

func (v *profileView) logout() tea.Cmd {
	app := v.app
	return app.track(func() tea.Msg {
		return loggedOutMsg{err: app.deps.Account.Logout(app.ctx)}
	})
}

func (v *profileView) View() string {
	var b strings.Builder
	switch {
	case v.err != nil && !v.loaded:
		b.WriteString(errorStyle.Render(account.UserMessage(v.err)))
		b.WriteString("\n")
	case !v.loaded:
		b.WriteString(mutedStyle.Render("Loading profile..."))
		b.WriteString("\n")
	default:
		u := v.user
		b.WriteString(titleStyle.Render(u.DisplayName()))
		b.WriteString("\n")
		rows := [][2]string{
			{"Username", u.Username},
			{"Email", u.Email},
			{"Phone", u.Phone},
			{"Address", formatAddress(u.Address)},
		}
		for _, row := range rows {
			b.WriteString(detailStyle.Render(fmt.Sprintf("%-9s %s", row[0], row[1])))
			b.WriteString("\n")
		}
	}
	if len(v.orders) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Recent orders"))
		b.WriteString("\n")
		for _, o := range v.orders {
			b.WriteString(detailStyle.Render(fmt.Sprintf("%s  %s  %d item(s)  $%s",
				o.ShortID(), o.PlacedAt.Local().Format("Jan 2 15:04"), o.Units, o.Total.StringFixed(2))))
			b.WriteString("\n")
		}
	}
	if len(v.recent) > 0 {
		last := v.recent[0]
		when := "earlier"
		if !last.Time.IsZero() {
			when = last.Time.Local().Format("Jan 2 15:04")
		}
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Last activity (%s): %s", when, last.Message)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("e edit · o log out · r reload"))
	return b.String()
}

func formatAddress(a account.Address) string {
	var parts []string
	street := strings.TrimSpace(strings.TrimSpace(string(a.Number)) + " " + a.Street)
	for _, p := range []string{street, a.City, a.Zipcode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
