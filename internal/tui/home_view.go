package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/membership"
)

type catalogLoadedMsg struct {
	products   []catalog.Product
	categories []string
	err        error
}

type homeMembershipMsg struct {
	flags map[int]membership.Membership
}

// searchSettledMsg fires once typing pauses; stale generations are ignored.
type searchSettledMsg struct {
	gen int
}

const defaultSearchDelay = 300 * time.Millisecond

// productItem implements list.Item for the product grid.
type productItem struct {
	product catalog.Product
	flags   membership.Membership
}

func (i productItem) Title() string {
	title := i.product.Title
	if i.flags.Liked {
		title = "♥ " + title
	}
	if catalog.HasDiscountBadge(i.product) {
		title += "  [10% OFF]"
	}
	return title
}

func (i productItem) Description() string {
	desc := fmt.Sprintf("$%s · ★ %.1f (%d) · %s",
		i.product.Price.StringFixed(2), i.product.Rating.Rate, i.product.Rating.Count, i.product.Category)
	if i.flags.InCart {
		desc += " · in cart"
	}
	return desc
}

func (i productItem) FilterValue() string { return i.product.Title }

type homeView struct {
	app        *App
	list       list.Model
	all        []catalog.Product
	categories []string
	selected   map[string]bool
	sort       catalog.SortOption
	flags      map[int]membership.Membership
	filtering  bool
	catCursor  int
	loaded     bool
	err        error

	search      textinput.Model
	searching   bool
	query       string
	searchGen   int
	searchDelay time.Duration
}

func newHomeView(app *App) *homeView {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Products"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	search := textinput.New()
	search.Placeholder = "Search products..."
	search.Prompt = "/ "
	search.CharLimit = 64
	search.Cursor.SetMode(cursor.CursorStatic)

	return &homeView{
		app:         app,
		list:        l,
		selected:    map[string]bool{},
		sort:        catalog.SortNone,
		flags:       map[int]membership.Membership{},
		search:      search,
		searchDelay: defaultSearchDelay,
	}
}

func (v *homeView) resize(width, height int) {
	v.list.SetSize(max(20, width-6), max(6, height-10))
}

// Focus loads the catalog once and refreshes membership markers every time.
func (v *homeView) Focus() tea.Cmd {
	v.filtering = false
	v.searching = false
	v.search.Blur()
	if !v.loaded {
		return v.loadCatalog()
	}
	return v.refreshMembership()
}

func (v *homeView) loadCatalog() tea.Cmd {
	app := v.app
	return app.track(func() tea.Msg {
		var msg catalogLoadedMsg
		g, ctx := errgroup.WithContext(app.ctx)
		g.Go(func() error {
			products, err := app.deps.Catalog.Products(ctx)
			msg.products = products
			return err
		})
		g.Go(func() error {
			categories, err := app.deps.Catalog.Categories(ctx)
			msg.categories = categories
			return err
		})
		msg.err = g.Wait()
		return msg
	})
}

func (v *homeView) refreshMembership() tea.Cmd {
	ids := make([]int, len(v.all))
	for i, p := range v.all {
		ids[i] = p.ID
	}
	app := v.app
	return func() tea.Msg {
		flags := make(map[int]membership.Membership, len(ids))
		for _, m := range app.deps.Membership.RefreshAll(app.ctx, ids) {
			flags[m.ProductID] = m
		}
		return homeMembershipMsg{flags: flags}
	}
}

// capturingKeys is true while the category picker or the search box owns
// the keyboard.
func (v *homeView) capturingKeys() bool {
	return v.filtering || v.searching
}

func (v *homeView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case catalogLoadedMsg:
		if m.err != nil {
			v.err = m.err
			v.app.logger.Warn("catalog load failed")
			return nil
		}
		v.err = nil
		v.loaded = true
		v.all = m.products
		v.categories = m.categories
		v.apply()
		return v.refreshMembership()

	case homeMembershipMsg:
		v.flags = m.flags
		v.apply()
		return nil

	case searchSettledMsg:
		if m.gen == v.searchGen {
			v.setQuery(v.search.Value())
		}
		return nil

	case tea.KeyMsg:
		if v.filtering {
			return v.updateFilter(m)
		}
		if v.searching {
			return v.updateSearch(m)
		}
		switch m.String() {
		case "enter":
			if item, ok := v.list.SelectedItem().(productItem); ok {
				return v.app.openProduct(item.product)
			}
			return nil
		case "s":
			v.sort = nextSort(v.sort)
			v.app.statusMsg = "Sort: " + v.sort.Label()
			v.apply()
			return nil
		case "f":
			if len(v.categories) > 0 {
				v.filtering = true
			}
			return nil
		case "/":
			v.searching = true
			return v.search.Focus()
		case "r":
			return v.loadCatalog()
		}
		var cmd tea.Cmd
		v.list, cmd = v.list.Update(m)
		return cmd
	}
	return nil
}

func (v *homeView) updateFilter(m tea.KeyMsg) tea.Cmd {
	switch m.String() {
	case "up", "k":
		if v.catCursor > 0 {
			v.catCursor--
		}
	case "down", "j":
		if v.catCursor < len(v.categories)-1 {
			v.catCursor++
		}
	case " ", "x":
		name := v.categories[v.catCursor]
		v.selected[name] = !v.selected[name]
		v.apply()
	case "c":
		v.selected = map[string]bool{}
		v.apply()
	case "enter", "esc", "f":
		v.filtering = false
	}
	return nil
}

// updateSearch edits the title query. The list follows once typing pauses for
// searchDelay; enter applies at once and esc clears the search.
func (v *homeView) updateSearch(m tea.KeyMsg) tea.Cmd {
	switch m.String() {
	case "enter":
		v.searching = false
		v.search.Blur()
		v.setQuery(v.search.Value())
		return nil
	case "esc":
		v.searching = false
		v.search.Blur()
		v.search.SetValue("")
		v.setQuery("")
		return nil
	}
	before := v.search.Value()
	var cmd tea.Cmd
	v.search, cmd = v.search.Update(m)
	if v.search.Value() == before {
		return cmd
	}
	v.searchGen++
	if v.searchDelay <= 0 {
		v.setQuery(v.search.Value())
		return cmd
	}
	gen := v.searchGen
	return tea.Batch(cmd, tea.Tick(v.searchDelay, func(time.Time) tea.Msg {
		return searchSettledMsg{gen: gen}
	}))
}

func (v *homeView) setQuery(q string) {
	q = strings.TrimSpace(q)
	if q == v.query {
		return
	}
	v.query = q
	v.apply()
}

func (v *homeView) activeCategories() []string {
	var out []string
	for _, name := range v.categories {
		if v.selected[name] {
			out = append(out, name)
		}
	}
	return out
}

func (v *homeView) visible() []catalog.Product {
	return catalog.FilterByTitle(catalog.Browse(v.all, v.sort, v.activeCategories()), v.query)
}

func (v *homeView) apply() {
	products := v.visible()
	items := make([]list.Item, len(products))
	for i, p := range products {
		items[i] = productItem{product: p, flags: v.flags[p.ID]}
	}
	idx := v.list.Index()
	v.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		v.list.Select(idx)
	}
}

func nextSort(current catalog.SortOption) catalog.SortOption {
	for i, choice := range catalog.SortChoices {
		if choice.Value == current {
			return catalog.SortChoices[(i+1)%len(catalog.SortChoices)].Value
		}
	}
	return catalog.SortChoices[0].Value
}

func (v *homeView) View() string {
	if v.err != nil {
		return errorStyle.Render("Could not load products: "+v.err.Error()) + "\n" + mutedStyle.Render("r retry")
	}
	if !v.loaded {
		return mutedStyle.Render("Loading products...")
	}
	var b strings.Builder
	filters := "all categories"
	if active := v.activeCategories(); len(active) > 0 {
		filters = strings.Join(active, ", ")
	}
	b.WriteString(detailStyle.Render(fmt.Sprintf("Sort: %s · Filter: %s", v.sort.Label(), filters)))
	b.WriteString("\n")
	switch {
	case v.searching:
		b.WriteString(v.search.View())
		b.WriteString("\n")
	case v.query != "":
		b.WriteString(detailStyle.Render(fmt.Sprintf("Search: %q", v.query)))
		b.WriteString("\n")
	}
	if v.filtering {
		b.WriteString(v.renderFilter())
		return b.String()
	}
	if len(v.list.Items()) == 0 {
		b.WriteString(mutedStyle.Render("No products match the current filter or search."))
	} else {
		b.WriteString(v.list.View())
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter open · / search · s sort · f filter · r reload"))
	return b.String()
}

func (v *homeView) renderFilter() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Categories"))
	b.WriteString("\n")
	for i, name := range v.categories {
		box := "[ ]"
		if v.selected[name] {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, name)
		if i == v.catCursor {
			line = selectedStyle.Render("› " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("space toggle · c clear · enter done"))
	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
