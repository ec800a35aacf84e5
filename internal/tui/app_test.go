package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/kingrea/storefront/internal/account"
	"github.com/kingrea/storefront/internal/cart"
	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/favorites"
	"github.com/kingrea/storefront/internal/logbook"
	"github.com/kingrea/storefront/internal/orders"
	"github.com/kingrea/storefront/internal/store"
)

type fakeCatalog struct {
	products []catalog.Product
	missing  map[int]bool
}

func (f *fakeCatalog) Product(_ context.Context, id int) (catalog.Product, error) {
	if f.missing[id] {
		return catalog.Product{}, &catalog.LookupError{ProductID: id, Err: errors.New("gone")}
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, &catalog.LookupError{ProductID: id, Err: errors.New("not found")}
}

func (f *fakeCatalog) Products(context.Context) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) ProductsByCategory(_ context.Context, name string) ([]catalog.Product, error) {
	return catalog.FilterByCategories(f.products, []string{name}), nil
}

func (f *fakeCatalog) Categories(context.Context) ([]string, error) {
	return []string{"electronics", "jewelery"}, nil
}

type fakeAccount struct {
	store    *store.Store
	loginErr error
	signups  []account.SignupForm
	user     *account.User
}

func (f *fakeAccount) LoggedIn(ctx context.Context) bool {
	var flag bool
	return f.store.Get(ctx, store.KeyLoggedIn, &flag) && flag
}

func (f *fakeAccount) Login(ctx context.Context, creds account.Credentials) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	return f.store.Set(ctx, store.KeyLoggedIn, true)
}

func (f *fakeAccount) Signup(_ context.Context, form account.SignupForm) (int, error) {
	if err := form.Validate(); err != nil {
		return 0, err
	}
	f.signups = append(f.signups, form)
	return 10 + len(f.signups), nil
}

func (f *fakeAccount) Profile(context.Context) (account.User, error) {
	if f.user != nil {
		return *f.user, nil
	}
	return account.User{
		ID:       1,
		Username: "johnd",
		Email:    "john@gmail.com",
		Name:     account.Name{Firstname: "john", Lastname: "doe"},
		Address:  account.Address{City: "kilcoole", Street: "new road"},
		Phone:    "1570236498",
	}, nil
}

func (f *fakeAccount) UpdateProfile(ctx context.Context, form account.SignupForm) (account.User, error) {
	if err := form.ValidateProfile(); err != nil {
		return account.User{}, err
	}
	user, _ := f.Profile(ctx)
	user.Username = form.Username
	user.Email = form.Email
	user.Phone = form.Phone
	user.Address.City = form.City
	user.Address.Street = form.Street
	f.user = &user
	return user, nil
}

func (f *fakeAccount) Logout(ctx context.Context) error {
	return f.store.Clear(ctx)
}

// switchableBackend fails writes while broken is set and counts reads.
type switchableBackend struct {
	*store.MemoryBackend
	broken bool
	reads  int
}

func (b *switchableBackend) Read(ctx context.Context, key string) ([]byte, error) {
	b.reads++
	return b.MemoryBackend.Read(ctx, key)
}

func (b *switchableBackend) Write(ctx context.Context, key string, data []byte) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Write(ctx, key, data)
}

type testEnv struct {
	app     *App
	backend *switchableBackend
	store   *store.Store
	cart    *cart.Engine
	favs    *favorites.Engine
	catalog *fakeCatalog
	book    *logbook.Logbook
}

func newTestApp(t *testing.T, loggedIn bool) *testEnv {
	t.Helper()
	backend := &switchableBackend{MemoryBackend: store.NewMemoryBackend()}
	s := store.New(backend, store.WithSerializedKeys())
	book, err := logbook.New(filepath.Join(t.TempDir(), "activity.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	cat := &fakeCatalog{
		products: []catalog.Product{
			{ID: 1, Title: "Backpack", Category: "electronics", Price: decimal.RequireFromString("109.95")},
			{ID: 2, Title: "SSD", Category: "electronics", Price: decimal.RequireFromString("64")},
			{ID: 3, Title: "Ring", Category: "jewelery", Price: decimal.RequireFromString("10")},
		},
		missing: map[int]bool{},
	}
	cartEngine := cart.NewEngine(s, cart.WithJournal(book))
	favEngine := favorites.NewEngine(s)
	if loggedIn {
		if err := s.Set(context.Background(), store.KeyLoggedIn, true); err != nil {
			t.Fatalf("seed login: %v", err)
		}
	}
	app, err := NewApp(Deps{
		Catalog:   cat,
		Account:   &fakeAccount{store: s},
		Cart:      cartEngine,
		Favorites: favEngine,
		Logbook:   book,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env := &testEnv{app: app, backend: backend, store: s, cart: cartEngine, favs: favEngine, catalog: cat, book: book}
	env.app = runCommands(t, app, app.Init())
	return env
}

// runCommands drains cmd and everything it schedules. Spinner ticks are
// dropped so the loop ends.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch m := msg.(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
			continue
		case tea.BatchMsg:
			queue = append(queue, m...)
			continue
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		queue = append(queue, nextCmd)
	}
	return app
}

func press(t *testing.T, app *App, keys ...string) *App {
	t.Helper()
	for _, key := range keys {
		var msg tea.KeyMsg
		switch key {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		case "ctrl+n":
			msg = tea.KeyMsg{Type: tea.KeyCtrlN}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		model, cmd := app.Update(msg)
		app = runCommands(t, model, cmd)
	}
	return app
}

func TestStartsOnLoginWhenLoggedOut(t *testing.T) {
	env := newTestApp(t, false)
	if env.app.state != stateLogin {
		t.Fatalf("state = %s, want Login", env.app.state.label())
	}
	app := press(t, env.app, "mor_2314", "tab", "83r5^_", "enter")
	if app.state != stateHome {
		t.Fatalf("state after login = %s", app.state.label())
	}
	if len(app.home.list.Items()) != 3 {
		t.Fatalf("home should list 3 products, got %d", len(app.home.list.Items()))
	}
}

func TestLoginRequiresFields(t *testing.T) {
	env := newTestApp(t, false)
	app := press(t, env.app, "tab", "enter")
	if app.state != stateLogin {
		t.Fatalf("empty login should stay on login screen")
	}
	if app.login.errs["username"] != account.MsgUsernameMissing {
		t.Fatalf("username error = %q", app.login.errs["username"])
	}
}

func TestLoginFailureShowsAlert(t *testing.T) {
	env := newTestApp(t, false)
	env.app.deps.Account.(*fakeAccount).loginErr = account.ErrNoToken
	app := press(t, env.app, "a", "tab", "b", "enter")
	if app.state != stateLogin || app.alert != "Something went wrong" {
		t.Fatalf("state=%s alert=%q", app.state.label(), app.alert)
	}
}

func TestHomeSortAndFilter(t *testing.T) {
	env := newTestApp(t, true)
	app := press(t, env.app, "s")
	first := app.home.list.Items()[0].(productItem)
	if first.product.ID != 3 {
		t.Fatalf("price low to high should start with Ring, got %s", first.product.Title)
	}
	app = press(t, app, "f", "down", " ", "enter")
	items := app.home.list.Items()
	if len(items) != 1 || items[0].(productItem).product.ID != 3 {
		t.Fatalf("jewelery filter should leave the ring, got %d items", len(items))
	}
}

func TestHomeTitleSearch(t *testing.T) {
	env := newTestApp(t, true)
	env.app.home.searchDelay = 0
	app := press(t, env.app, "/", "s", "S", "d")
	items := app.home.list.Items()
	if len(items) != 1 || items[0].(productItem).product.ID != 2 {
		t.Fatalf("search for ssd should leave one product, got %d", len(items))
	}
	if app.state != stateHome || app.home.sort != catalog.SortNone {
		t.Fatalf("typing in the search box must not trigger shortcuts")
	}
	app = press(t, app, "enter", "3", "1")
	if len(app.home.list.Items()) != 1 {
		t.Fatalf("search should survive navigation")
	}
	app = press(t, app, "/", "esc")
	if len(app.home.list.Items()) != 3 || app.home.query != "" {
		t.Fatalf("esc should clear the search")
	}
}

func TestHomeSearchIgnoresStaleTimers(t *testing.T) {
	env := newTestApp(t, true)
	app := press(t, env.app, "/")
	if _, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd == nil {
		t.Fatalf("typing should schedule a settle timer")
	}
	if len(app.home.list.Items()) != 3 {
		t.Fatalf("list should wait for typing to pause")
	}
	app = runCommands(t, app, func() tea.Msg { return searchSettledMsg{gen: app.home.searchGen - 1} })
	if app.home.query != "" {
		t.Fatalf("stale timer applied %q", app.home.query)
	}
	app = runCommands(t, app, func() tea.Msg { return searchSettledMsg{gen: app.home.searchGen} })
	if app.home.query != "r" || len(app.home.list.Items()) != 1 {
		t.Fatalf("settled search = %q, %d items", app.home.query, len(app.home.list.Items()))
	}
}

func TestSignupFromLogin(t *testing.T) {
	env := newTestApp(t, false)
	fake := env.app.deps.Account.(*fakeAccount)
	app := press(t, env.app, "ctrl+n")
	if app.state != stateSignup {
		t.Fatalf("ctrl+n should open signup, got %s", app.state.label())
	}
	app = press(t, app, "tab", "tab", "tab", "tab", "tab", "enter")
	if app.state != stateSignup || app.signup.errs["username"] != "Username is required" {
		t.Fatalf("empty signup errors = %v", app.signup.errs)
	}
	if len(fake.signups) != 0 {
		t.Fatalf("invalid form reached the account service")
	}

	app = press(t, app, "tab",
		"quinn", "tab", "quinn@example.com", "tab", "1570236498", "tab",
		"kilcoole", "tab", "new road", "tab", "Secr3t!", "enter")
	if len(fake.signups) != 1 || fake.signups[0].Username != "quinn" || fake.signups[0].Password != "Secr3t!" {
		t.Fatalf("signups = %+v", fake.signups)
	}
	if app.state != stateLogin || app.login.inputs[0].Value() != "quinn" {
		t.Fatalf("signup should return to login with the username filled in")
	}
	if !strings.Contains(app.View(), "Account created") {
		t.Fatalf("missing confirmation:\n%s", app.View())
	}
}

func TestSignupEscReturnsToLogin(t *testing.T) {
	env := newTestApp(t, false)
	app := press(t, env.app, "ctrl+n", "q", "1")
	if app.state != stateSignup || app.signup.inputs[0].Value() != "q1" {
		t.Fatalf("signup should keep q and digits as text, state=%s", app.state.label())
	}
	app = press(t, app, "esc")
	if app.state != stateLogin {
		t.Fatalf("esc should go back to login, got %s", app.state.label())
	}
}

func TestEditProfileSavesChanges(t *testing.T) {
	env := newTestApp(t, true)
	fake := env.app.deps.Account.(*fakeAccount)
	app := press(t, env.app, "4", "e")
	if app.state != stateEditProfile {
		t.Fatalf("e should open the editor, got %s", app.state.label())
	}
	if len(app.editor.inputs) != 5 || app.editor.value("username") != "johnd" || app.editor.value("phone") != "1570236498" {
		t.Fatalf("editor not prefilled: %+v", app.editor.form())
	}
	app = press(t, app, "tab", "tab", "backspace", "9", "enter")
	if app.editor.errs["phone"] != "" || app.state != stateEditProfile {
		t.Fatalf("enter mid-form should only move focus")
	}
	app = press(t, app, "enter", " 2", "enter")
	if fake.user == nil || fake.user.Phone != "1570236499" || fake.user.Address.Street != "new road 2" {
		t.Fatalf("saved user = %+v", fake.user)
	}
	if app.state != stateProfile || !strings.Contains(app.View(), "new road 2") {
		t.Fatalf("profile should show the saved street:\n%s", app.View())
	}
}

func TestEditProfileRejectsBadPhone(t *testing.T) {
	env := newTestApp(t, true)
	fake := env.app.deps.Account.(*fakeAccount)
	app := press(t, env.app, "4", "e", "tab", "tab", "0", "tab", "tab", "enter")
	if app.state != stateEditProfile || app.editor.errs["phone"] != account.MsgInvalidPhone {
		t.Fatalf("phone error = %q", app.editor.errs["phone"])
	}
	if fake.user != nil {
		t.Fatalf("invalid profile reached the account service")
	}
}

func TestAddToCartThenAddAgainOpensCart(t *testing.T) {
	env := newTestApp(t, true)
	app := env.app
	model, cmd := app, app.openProduct(env.catalog.products[1])
	app = runCommands(t, model, cmd)
	if app.state != stateProduct || app.product.flags.InCart {
		t.Fatalf("unexpected product state %+v", app.product.flags)
	}
	app = press(t, app, "a")
	if !env.cart.IsInCart(context.Background(), 2) {
		t.Fatalf("product 2 should be in the stored cart")
	}
	app = press(t, app, "a")
	if app.state != stateCart {
		t.Fatalf("second add should open the cart, state = %s", app.state.label())
	}
	if len(env.cart.Load(context.Background())) != 1 {
		t.Fatalf("cart must keep a single line")
	}
}

func TestProductFocusReadsFlagsInBackground(t *testing.T) {
	env := newTestApp(t, true)
	if _, err := env.cart.AddItem(context.Background(), env.catalog.products[1], 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := env.backend.reads
	cmd := env.app.openProduct(env.catalog.products[1])
	if env.backend.reads != before {
		t.Fatalf("opening a product read the store on the update loop")
	}
	if env.app.product.flags.InCart {
		t.Fatalf("flags should wait for the load")
	}
	app := runCommands(t, env.app, cmd)
	if !app.product.flags.InCart {
		t.Fatalf("loaded flags = %+v", app.product.flags)
	}
}

func TestLikeFromProductShowsInFavorites(t *testing.T) {
	env := newTestApp(t, true)
	app := runCommands(t, env.app, env.app.openProduct(env.catalog.products[0]))
	app = press(t, app, "l")
	if !app.product.flags.Liked || !env.favs.IsLiked(context.Background(), 1) {
		t.Fatalf("like did not persist")
	}
	app = press(t, app, "2")
	if app.state != stateFavorites || len(app.favorites.entries) != 1 {
		t.Fatalf("favorites = %+v", app.favorites.entries)
	}
}

func TestCartReloadsOnFocus(t *testing.T) {
	env := newTestApp(t, true)
	app := press(t, env.app, "3")
	if len(app.cartView.items) != 0 {
		t.Fatalf("cart should start empty")
	}
	app = press(t, app, "1")
	if _, err := env.cart.AddItem(context.Background(), env.catalog.products[2], 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	app = press(t, app, "3")
	if len(app.cartView.items) != 1 {
		t.Fatalf("cart screen did not reload, got %v", app.cartView.items)
	}
}

func TestQuantityChangeRevertsOnWriteFailure(t *testing.T) {
	env := newTestApp(t, true)
	ctx := context.Background()
	_, _ = env.cart.AddItem(ctx, env.catalog.products[0], 1)
	app := press(t, env.app, "3", "+")
	if app.cartView.items[0].Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", app.cartView.items[0].Quantity)
	}
	app = press(t, app, "-", "-")
	if app.cartView.items[0].Quantity != 1 {
		t.Fatalf("quantity should stop at 1, got %d", app.cartView.items[0].Quantity)
	}

	env.backend.broken = true
	app = press(t, app, "+")
	if app.cartView.items[0].Quantity != 1 {
		t.Fatalf("failed write should revert to 1, got %d", app.cartView.items[0].Quantity)
	}
	if !strings.Contains(app.alert, "Could not update") {
		t.Fatalf("alert = %q", app.alert)
	}
}

func TestRemoveNeedsConfirmation(t *testing.T) {
	env := newTestApp(t, true)
	ctx := context.Background()
	_, _ = env.cart.AddItem(ctx, env.catalog.products[0], 1)
	_, _ = env.cart.AddItem(ctx, env.catalog.products[1], 1)
	app := press(t, env.app, "3", "d")
	if app.confirm == nil {
		t.Fatalf("remove should ask first")
	}
	app = press(t, app, "n")
	if len(env.cart.Load(ctx)) != 2 {
		t.Fatalf("declined remove must not change the cart")
	}
	app = press(t, app, "d", "y")
	got := env.cart.Load(ctx)
	if len(got) != 1 || got[0].ID != 2 || len(app.cartView.items) != 1 {
		t.Fatalf("remove failed, store=%v screen=%v", got, app.cartView.items)
	}
}

func TestCheckoutClearsStoreAndShowsReceipt(t *testing.T) {
	env := newTestApp(t, true)
	ctx := context.Background()
	_, _ = env.cart.AddItem(ctx, env.catalog.products[2], 1)
	_, _ = env.favs.ToggleLike(ctx, 3)
	app := press(t, env.app, "3", "c", "y")
	if app.cartView.receipt == nil {
		t.Fatalf("expected a receipt")
	}
	if got := app.cartView.receipt.Summary.TotalText(); got != "16.00" {
		t.Fatalf("receipt total = %s", got)
	}
	if len(env.cart.Load(ctx)) != 0 || len(env.favs.ListLiked(ctx)) != 0 {
		t.Fatalf("checkout should clear the whole store")
	}
	lines, _ := env.book.Tail(5)
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "Order") {
		t.Fatalf("journal = %v", lines)
	}
	app = press(t, app, "x")
	if app.state != stateHome {
		t.Fatalf("any key after receipt should return home, got %s", app.state.label())
	}
}

func TestFavoritesFlagsUnavailableProducts(t *testing.T) {
	env := newTestApp(t, true)
	ctx := context.Background()
	_, _ = env.favs.ToggleLike(ctx, 1)
	_, _ = env.favs.ToggleLike(ctx, 3)
	env.catalog.missing[1] = true
	app := press(t, env.app, "2")
	if len(app.favorites.entries) != 2 || app.favorites.entries[0].OK() || !app.favorites.entries[1].OK() {
		t.Fatalf("entries = %+v", app.favorites.entries)
	}
	if !strings.Contains(app.View(), "unavailable") {
		t.Fatalf("view should flag the broken entry")
	}
	app = press(t, app, "down", "u")
	if env.favs.IsLiked(ctx, 3) || len(app.favorites.entries) != 1 {
		t.Fatalf("unlike failed")
	}
}

func TestUnlikeAlreadyUnlikedStaysUnliked(t *testing.T) {
	env := newTestApp(t, true)
	ctx := context.Background()
	_, _ = env.favs.ToggleLike(ctx, 3)
	app := press(t, env.app, "2")
	if len(app.favorites.entries) != 1 {
		t.Fatalf("entries = %+v", app.favorites.entries)
	}
	_, _ = env.favs.ToggleLike(ctx, 3)
	app = press(t, app, "u")
	if env.favs.IsLiked(ctx, 3) {
		t.Fatalf("unlike on a stale entry must not like the product again")
	}
	if len(app.favorites.entries) != 0 {
		t.Fatalf("entry should stay off the screen, got %+v", app.favorites.entries)
	}
}

func TestLogoutReturnsToLogin(t *testing.T) {
	env := newTestApp(t, true)
	ctx := context.Background()
	_, _ = env.cart.AddItem(ctx, env.catalog.products[0], 1)
	app := press(t, env.app, "4")
	if !app.profile.loaded || !strings.Contains(app.View(), "john doe") {
		t.Fatalf("profile not rendered")
	}
	app = press(t, app, "o", "y")
	if app.state != stateLogin {
		t.Fatalf("state after logout = %s", app.state.label())
	}
	if app.deps.Account.LoggedIn(ctx) || len(env.cart.Load(ctx)) != 0 {
		t.Fatalf("logout should clear the store")
	}
}

func TestNewAppRequiresServices(t *testing.T) {
	if _, err := NewApp(Deps{}); err == nil {
		t.Fatalf("expected error for missing services")
	}
}

func TestChangeFeedRefreshesHomeMarkers(t *testing.T) {
	env := newTestApp(t, true)
	bus := changefeed.NewBus()
	favEngine := favorites.NewEngine(env.store, favorites.WithChanges(bus))
	app, err := NewApp(Deps{
		Catalog:   env.catalog,
		Account:   &fakeAccount{store: env.store},
		Cart:      env.cart,
		Favorites: favEngine,
		Changes:   bus,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	app = runCommands(t, app, app.focus(stateHome))
	if app.home.flags[2].Liked {
		t.Fatalf("product 2 should start unliked")
	}

	if _, err := favEngine.ToggleLike(context.Background(), 2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	event := <-app.changes
	if event.Kind != changefeed.FavoriteLiked || event.ProductID != 2 {
		t.Fatalf("unexpected event %+v", event)
	}
	// closing first lets the re-armed wait return immediately
	app.Close()
	app = runCommands(t, app, func() tea.Msg { return changeMsg{event: event} })
	if !app.home.flags[2].Liked {
		t.Fatalf("home markers were not refreshed: %+v", app.home.flags)
	}
}

func TestProfileListsArchivedOrders(t *testing.T) {
	env := newTestApp(t, true)
	archive, err := orders.NewArchive(filepath.Join(t.TempDir(), "orders"))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	cartEngine := cart.NewEngine(env.store,
		cart.WithArchive(archive),
		cart.WithOrderIDs(func() string { return "5e1f9a3c-0000-4000-8000-000000000000" }),
	)
	app, err := NewApp(Deps{
		Catalog:   env.catalog,
		Account:   &fakeAccount{store: env.store},
		Cart:      cartEngine,
		Favorites: env.favs,
		Orders:    archive,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	app = runCommands(t, app, app.Init())
	_, _ = cartEngine.AddItem(context.Background(), env.catalog.products[2], 1)
	app = press(t, app, "3", "c", "y", "x", "4")
	if app.state != stateProfile || len(app.profile.orders) != 1 {
		t.Fatalf("orders on profile = %+v", app.profile.orders)
	}
	view := app.View()
	if !strings.Contains(view, "Recent orders") || !strings.Contains(view, "5e1f9a3c") || !strings.Contains(view, "$16.00") {
		t.Fatalf("profile view missing order:\n%s", view)
	}
}
