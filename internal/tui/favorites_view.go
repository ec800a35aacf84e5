package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/favorites"
)

type favoritesLoadedMsg struct {
	entries []favorites.Entry
}

type unlikedMsg struct {
	id      int
	entries []favorites.Entry
	err     error
}

type favoritesView struct {
	app       *App
	entries   []favorites.Entry
	selection int
	loaded    bool
}

func newFavoritesView(app *App) *favoritesView {
	return &favoritesView{app: app}
}

// Focus rereads the liked ids and resolves each through the catalog.
func (v *favoritesView) Focus() tea.Cmd {
	app := v.app
	return app.track(func() tea.Msg {
		return favoritesLoadedMsg{entries: app.deps.Favorites.Hydrate(app.ctx, app.deps.Catalog)}
	})
}

func (v *favoritesView) setEntries(entries []favorites.Entry) {
	v.entries = entries
	v.loaded = true
	if v.selection >= len(v.entries) {
		v.selection = len(v.entries) - 1
	}
	if v.selection < 0 {
		v.selection = 0
	}
}

func (v *favoritesView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case favoritesLoadedMsg:
		v.setEntries(m.entries)
		return nil

	case unlikedMsg:
		if m.err != nil {
			v.setEntries(m.entries)
			v.app.showAlert("Could not update favorites. Please try again.")
		}
		return nil

	case tea.KeyMsg:
		switch m.String() {
		case "up", "k":
			if v.selection > 0 {
				v.selection--
			}
		case "down", "j":
			if v.selection < len(v.entries)-1 {
				v.selection++
			}
		case "u", "l", "d":
			return v.unlike()
		case "enter":
			if v.selection < len(v.entries) {
				entry := v.entries[v.selection]
				if !entry.OK() {
					v.app.showAlert(lookupMessage(entry.Err))
					return nil
				}
				return v.app.openProduct(entry.Product)
			}
		}
	}
	return nil
}

// unlike drops the entry from the screen and persists the unliked state,
// restoring the entry if the write fails.
func (v *favoritesView) unlike() tea.Cmd {
	if v.selection >= len(v.entries) {
		return nil
	}
	previous := append([]favorites.Entry(nil), v.entries...)
	id := v.entries[v.selection].ID
	next := append([]favorites.Entry(nil), v.entries[:v.selection]...)
	next = append(next, v.entries[v.selection+1:]...)
	v.setEntries(next)
	app := v.app
	return func() tea.Msg {
		err := app.deps.Favorites.SetLiked(app.ctx, id, false)
		return unlikedMsg{id: id, entries: previous, err: err}
	}
}

func lookupMessage(err error) string {
	var lookupErr *catalog.LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.UserMessage()
	}
	return "Something went wrong"
}

func (v *favoritesView) View() string {
	if !v.loaded {
		return mutedStyle.Render("Loading favorites...")
	}
	if len(v.entries) == 0 {
		return titleStyle.Render("No favorites yet") + "\n" + mutedStyle.Render("press l on a product to like it")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Favorites"))
	b.WriteString("\n\n")
	for i, entry := range v.entries {
		var line string
		if entry.OK() {
			line = fmt.Sprintf("♥ %s  $%s", truncate(entry.Product.Title, 48), entry.Product.Price.StringFixed(2))
		} else {
			line = errorStyle.Render(fmt.Sprintf("! product #%d unavailable", entry.ID))
		}
		if i == v.selection {
			b.WriteString(selectedStyle.Render("› ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter open · u unlike"))
	return b.String()
}
