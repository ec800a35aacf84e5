// internal/tui/app.go
//
// This is the storefront's terminal UI. It uses bubbletea, which follows The
// Elm Architecture: state lives in App, Update turns messages into new state
// and View renders it.
//
// Screens never cache cart or favorites state across navigation. Every time a
// screen gains focus it reloads from the local store, so a change made on one
// screen shows up on the next one. When a change feed is wired in, the visible
// screen also refreshes its in-cart and liked markers as changes commit.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/storefront/internal/account"
	"github.com/kingrea/storefront/internal/cart"
	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/favorites"
	"github.com/kingrea/storefront/internal/logbook"
	"github.com/kingrea/storefront/internal/membership"
	"github.com/kingrea/storefront/internal/orders"
)

// appState represents which screen is active.
type appState int

const (
	stateLogin appState = iota
	stateHome
	stateProduct
	stateCart
	stateFavorites
	stateProfile
	stateSignup
	stateEditProfile
)

func (s appState) label() string {
	switch s {
	case stateLogin:
		return "Login"
	case stateHome:
		return "Home"
	case stateProduct:
		return "Product"
	case stateCart:
		return "Cart"
	case stateFavorites:
		return "Favorites"
	case stateProfile:
		return "Profile"
	case stateSignup:
		return "Sign up"
	case stateEditProfile:
		return "Edit profile"
	default:
		return "?"
	}
}

// tabs are reachable with the number keys once logged in.
var tabs = []appState{stateHome, stateFavorites, stateCart, stateProfile}

// Catalog is the product API as the screens use it.
type Catalog interface {
	catalog.Lookup
	Products(ctx context.Context) ([]catalog.Product, error)
	ProductsByCategory(ctx context.Context, name string) ([]catalog.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Account is the login session as the screens use it.
type Account interface {
	LoggedIn(ctx context.Context) bool
	Login(ctx context.Context, creds account.Credentials) error
	Signup(ctx context.Context, form account.SignupForm) (int, error)
	Profile(ctx context.Context) (account.User, error)
	UpdateProfile(ctx context.Context, form account.SignupForm) (account.User, error)
	Logout(ctx context.Context) error
}

// OrderHistory lists archived orders for the profile screen.
type OrderHistory interface {
	Recent(n int) []orders.Record
}

// Deps are the services the screens drive.
type Deps struct {
	Catalog    Catalog
	Account    Account
	Cart       *cart.Engine
	Favorites  *favorites.Engine
	Membership *membership.Reconciler
	Logbook    *logbook.Logbook
	Logger     *zap.Logger
	// Orders and Changes are optional.
	Orders  OrderHistory
	Changes *changefeed.Bus
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithContext sets the context passed to every service call.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// confirmation is a pending yes/no question.
type confirmation struct {
	prompt string
	onYes  func() tea.Cmd
}

// changeMsg carries one committed change from the feed.
type changeMsg struct {
	event changefeed.Event
}

// loadDoneMsg wraps the result of a tracked async call.
type loadDoneMsg struct {
	inner tea.Msg
}

// App is the main application model.
type App struct {
	state   appState
	history []appState
	deps    Deps
	ctx     context.Context
	logger  *zap.Logger

	login     *loginView
	home      *homeView
	product   *productView
	cartView  *cartView
	favorites *favoritesView
	profile   *profileView
	signup    *accountFormView
	editor    *accountFormView

	spinner   spinner.Model
	loading   int
	alert     string
	confirm   *confirmation
	statusMsg string

	changes     <-chan changefeed.Event
	unsubscribe func()

	width  int
	height int
}

// NewApp creates the storefront UI over deps.
func NewApp(deps Deps, opts ...AppOption) (*App, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("tui: catalog is required")
	case deps.Account == nil:
		return nil, errors.New("tui: account is required")
	case deps.Cart == nil:
		return nil, errors.New("tui: cart engine is required")
	case deps.Favorites == nil:
		return nil, errors.New("tui: favorites engine is required")
	}
	if deps.Membership == nil {
		deps.Membership = membership.New(deps.Cart, deps.Favorites)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = priceStyle

	app := &App{
		state:   stateLogin,
		deps:    deps,
		ctx:     context.Background(),
		logger:  deps.Logger,
		spinner: sp,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.login = newLoginView(app)
	app.home = newHomeView(app)
	app.product = newProductView(app)
	app.cartView = newCartView(app)
	app.favorites = newFavoritesView(app)
	app.profile = newProfileView(app)
	app.signup = newAccountFormView(app, signupForm)
	app.editor = newAccountFormView(app, profileForm)
	if deps.Changes != nil {
		sub := deps.Changes.Subscribe(changefeed.TopicCart, changefeed.TopicFavorites, changefeed.TopicSession)
		app.changes = sub.Events
		app.unsubscribe = sub.Close
	}
	return app, nil
}

// Close drops the change feed subscription.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// Init routes to home when the persisted login flag is set.
func (a *App) Init() tea.Cmd {
	start := stateLogin
	if a.deps.Account.LoggedIn(a.ctx) {
		start = stateHome
	}
	return tea.Batch(a.focus(start), a.waitForChange())
}

// waitForChange blocks on the feed until the next event or until Close.
func (a *App) waitForChange() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	ch := a.changes
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg{event: event}
	}
}

// applyChange refreshes the markers the visible screen shows. Full screens
// are left alone so optimistic edits and the receipt stay on screen.
func (a *App) applyChange(event changefeed.Event) tea.Cmd {
	a.logger.Debug("change received",
		zap.String("kind", string(event.Kind)),
		zap.Int("product_id", event.ProductID),
		zap.Int64("sequence", event.Sequence),
	)
	switch a.state {
	case stateHome:
		if a.home.loaded {
			return a.home.refreshMembership()
		}
	case stateProduct:
		if event.Touches(a.product.id) {
			return a.product.refreshFlags()
		}
	}
	return nil
}

// focus makes next the active screen and returns its reload command.
func (a *App) focus(next appState) tea.Cmd {
	a.state = next
	a.statusMsg = ""
	switch next {
	case stateLogin:
		a.history = nil
		return a.login.Focus()
	case stateHome:
		return a.home.Focus()
	case stateProduct:
		return a.product.Focus()
	case stateCart:
		return a.cartView.Focus()
	case stateFavorites:
		return a.favorites.Focus()
	case stateProfile:
		return a.profile.Focus()
	case stateSignup:
		return a.signup.Focus()
	case stateEditProfile:
		return a.editor.Focus()
	}
	return nil
}

// navigate pushes the current screen so esc can return to it.
func (a *App) navigate(next appState) tea.Cmd {
	if next != a.state {
		a.history = append(a.history, a.state)
	}
	return a.focus(next)
}

// openProduct shows the detail screen for p.
func (a *App) openProduct(p catalog.Product) tea.Cmd {
	a.product.show(p.ID, p)
	return a.navigate(stateProduct)
}

func (a *App) back() tea.Cmd {
	if len(a.history) == 0 {
		if a.state == stateHome || a.state == stateLogin {
			return nil
		}
		return a.focus(stateHome)
	}
	prev := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	return a.focus(prev)
}

// track runs fn off the event loop and shows the spinner until it returns.
func (a *App) track(fn func() tea.Msg) tea.Cmd {
	a.loading++
	work := func() tea.Msg {
		return loadDoneMsg{inner: fn()}
	}
	if a.loading == 1 {
		return tea.Batch(work, a.spinner.Tick)
	}
	return work
}

func (a *App) showAlert(text string) {
	a.alert = strings.TrimSpace(text)
}

func (a *App) ask(prompt string, onYes func() tea.Cmd) {
	a.confirm = &confirmation{prompt: prompt, onYes: onYes}
}

func (a *App) journal() *logbook.Logbook {
	return a.deps.Logbook
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.home.resize(msg.Width, msg.Height)
		return a, nil

	case loadDoneMsg:
		if a.loading > 0 {
			a.loading--
		}
		return a.Update(msg.inner)

	case spinner.TickMsg:
		if a.loading == 0 {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case changeMsg:
		return a, tea.Batch(a.applyChange(msg.event), a.waitForChange())

	case loggedOutMsg:
		if msg.err != nil {
			a.showAlert(account.UserMessage(msg.err))
			return a, nil
		}
		return a, a.focus(stateLogin)

	case tea.KeyMsg:
		return a, a.handleKey(msg)
	}

	return a, a.broadcast(msg)
}

// broadcast delivers async results to every screen; each ignores what it
// does not own.
func (a *App) broadcast(msg tea.Msg) tea.Cmd {
	return tea.Batch(
		a.login.Update(msg),
		a.home.Update(msg),
		a.product.Update(msg),
		a.cartView.Update(msg),
		a.favorites.Update(msg),
		a.profile.Update(msg),
		a.signup.Update(msg),
		a.editor.Update(msg),
	)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}
	if a.alert != "" {
		a.alert = ""
		return nil
	}
	if a.confirm != nil {
		c := a.confirm
		switch key {
		case "y", "Y", "enter":
			a.confirm = nil
			return c.onYes()
		case "n", "N", "esc":
			a.confirm = nil
		}
		return nil
	}
	switch a.state {
	case stateLogin:
		return a.login.Update(msg)
	case stateSignup:
		return a.signup.Update(msg)
	case stateEditProfile:
		return a.editor.Update(msg)
	}
	if a.state == stateHome && a.home.capturingKeys() {
		return a.home.Update(msg)
	}
	switch key {
	case "q":
		return tea.Quit
	case "esc", "backspace":
		return a.back()
	case "1", "2", "3", "4":
		idx := int(key[0] - '1')
		a.history = nil
		return a.focus(tabs[idx])
	}
	switch a.state {
	case stateHome:
		return a.home.Update(msg)
	case stateProduct:
		return a.product.Update(msg)
	case stateCart:
		return a.cartView.Update(msg)
	case stateFavorites:
		return a.favorites.Update(msg)
	case stateProfile:
		return a.profile.Update(msg)
	}
	return nil
}

// View renders the current state to a string.
func (a *App) View() string {
	var content string
	switch a.state {
	case stateLogin:
		content = a.login.View()
	case stateHome:
		content = a.home.View()
	case stateProduct:
		content = a.product.View()
	case stateCart:
		content = a.cartView.View()
	case stateFavorites:
		content = a.favorites.View()
	case stateProfile:
		content = a.profile.View()
	case stateSignup:
		content = a.signup.View()
	case stateEditProfile:
		content = a.editor.View()
	}

	sections := []string{a.renderHeader(), panelStyle.Render(content)}
	if a.confirm != nil {
		sections = append(sections, confirmStyle.Render(a.confirm.prompt+"  (y/n)"))
	}
	if a.alert != "" {
		sections = append(sections, alertStyle.Render(errorStyle.Render(a.alert)+"\n"+mutedStyle.Render("press any key")))
	}
	if a.state == stateProfile {
		if logPanel := a.renderLogPanel(); logPanel != "" {
			sections = append(sections, logPanel)
		}
	}
	sections = append(sections, statusStyle.Render(a.renderStatus()))
	return strings.Join(sections, "\n")
}

func (a *App) renderHeader() string {
	title := headerStyle.Render("⬡ STOREFRONT")
	if a.state == stateLogin || a.state == stateSignup {
		return title
	}
	parts := []string{title, " "}
	for i, tab := range tabs {
		label := fmt.Sprintf("%d %s", i+1, tab.label())
		if tab == stateCart {
			if units := a.cartView.units(); units > 0 {
				label = fmt.Sprintf("%s (%d)", label, units)
			}
		}
		if tab == a.state {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a *App) renderStatus() string {
	var parts []string
	if a.loading > 0 {
		parts = append(parts, a.spinner.View()+" loading")
	}
	if a.statusMsg != "" {
		parts = append(parts, a.statusMsg)
	}
	switch a.state {
	case stateLogin:
	case stateSignup, stateEditProfile:
		parts = append(parts, "esc back")
	default:
		parts = append(parts, "esc back · q quit")
	}
	return strings.Join(parts, " · ")
}

func (a *App) renderLogPanel() string {
	book := a.journal()
	if book == nil {
		return ""
	}
	lines, total := book.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(book.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("ACTIVITY · %s (%d)", fileName, total))
	body := detailStyle.Render(strings.Join(lines, "\n"))
	return panelStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}
