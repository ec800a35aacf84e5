package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storefront/internal/cart"
	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/membership"
)

type productLoadedMsg struct {
	id      int
	product catalog.Product
	similar []catalog.Product
	flags   membership.Membership
	err     error
}

type productFlagsMsg struct {
	flags membership.Membership
}

type likeToggledMsg struct {
	id    int
	liked bool
	err   error
}

type addedToCartMsg struct {
	id     int
	result cart.AddResult
	err    error
}

type productView struct {
	app       *App
	id        int
	product   catalog.Product
	hasData   bool
	similar   []catalog.Product
	selection int
	flags     membership.Membership
	err       error
}

func newProductView(app *App) *productView {
	return &productView{app: app}
}

// show sets the product to display; seed is rendered until the fresh copy
// arrives.
func (v *productView) show(id int, seed catalog.Product) {
	if id != v.id {
		v.similar = nil
		v.selection = 0
		v.flags = membership.Membership{ProductID: id}
	}
	v.id = id
	v.product = seed
	v.hasData = seed.ID == id
	v.err = nil
}

// Focus refetches the product and reconciles cart and like flags.
func (v *productView) Focus() tea.Cmd {
	if v.id == 0 {
		return nil
	}
	id := v.id
	app := v.app
	return app.track(func() tea.Msg {
		p, err := app.deps.Catalog.Product(app.ctx, id)
		if err != nil {
			return productLoadedMsg{id: id, err: err}
		}
		msg := productLoadedMsg{id: id, product: p, flags: app.deps.Membership.Refresh(app.ctx, id)}
		if p.Category != "" {
			if related, err := app.deps.Catalog.ProductsByCategory(app.ctx, p.Category); err == nil {
				msg.similar = catalog.Similar(related, p)
			}
		}
		return msg
	})
}

func (v *productView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case productLoadedMsg:
		if m.id != v.id {
			return nil
		}
		if m.err != nil {
			v.err = m.err
			var lookupErr *catalog.LookupError
			if errors.As(m.err, &lookupErr) {
				v.app.showAlert(lookupErr.UserMessage())
			} else {
				v.app.showAlert("Something went wrong")
			}
			return nil
		}
		v.product = m.product
		v.hasData = true
		v.similar = m.similar
		v.flags = m.flags
		if v.selection >= len(v.similar) {
			v.selection = 0
		}
		return nil

	case productFlagsMsg:
		if m.flags.ProductID == v.id {
			v.flags = m.flags
		}
		return nil

	case likeToggledMsg:
		if m.id != v.id {
			return nil
		}
		v.flags.Liked = m.liked
		if m.err != nil {
			v.app.showAlert("Could not update favorites. Please try again.")
		}
		return nil

	case addedToCartMsg:
		if m.id != v.id {
			return nil
		}
		if m.err != nil {
			v.app.showAlert("Could not add to cart. Please try again.")
			return v.refreshFlags()
		}
		switch m.result.Outcome {
		case cart.AlreadyPresent:
			v.flags.InCart = true
			return v.app.navigate(stateCart)
		case cart.Incremented:
			v.flags.InCart = true
			v.app.statusMsg = "Quantity increased"
		default:
			v.flags.InCart = true
			v.app.statusMsg = "Added to cart"
		}
		if j := v.app.journal(); j != nil {
			j.Info("Added %s to cart", v.product.Title)
		}
		return nil

	case tea.KeyMsg:
		switch m.String() {
		case "l":
			return v.toggleLike()
		case "a":
			return v.addToCart()
		case "g":
			return v.app.navigate(stateCart)
		case "left", "h":
			if v.selection > 0 {
				v.selection--
			}
		case "right":
			if v.selection < len(v.similar)-1 {
				v.selection++
			}
		case "enter":
			if v.selection < len(v.similar) {
				return v.app.openProduct(v.similar[v.selection])
			}
		}
	}
	return nil
}

// refreshFlags rereads the cart and like flags off the update loop.
func (v *productView) refreshFlags() tea.Cmd {
	if v.id == 0 {
		return nil
	}
	id := v.id
	app := v.app
	return func() tea.Msg {
		return productFlagsMsg{flags: app.deps.Membership.Refresh(app.ctx, id)}
	}
}

// toggleLike flips the flag immediately and reverts it if the write fails.
func (v *productView) toggleLike() tea.Cmd {
	if v.id == 0 {
		return nil
	}
	v.flags.Liked = !v.flags.Liked
	id := v.id
	app := v.app
	return func() tea.Msg {
		liked, err := app.deps.Favorites.ToggleLike(app.ctx, id)
		return likeToggledMsg{id: id, liked: liked, err: err}
	}
}

// addToCart goes straight to the cart when the product is already in it.
// The engine still decides, so a stale flag cannot create a duplicate line.
func (v *productView) addToCart() tea.Cmd {
	if !v.hasData {
		return nil
	}
	if v.flags.InCart && v.app.deps.Cart.Policy() == cart.DuplicateReject {
		return v.app.navigate(stateCart)
	}
	v.flags.InCart = true
	product := v.product
	app := v.app
	return app.track(func() tea.Msg {
		res, err := app.deps.Cart.AddItem(app.ctx, product, 1)
		return addedToCartMsg{id: product.ID, result: res, err: err}
	})
}

func (v *productView) View() string {
	if !v.hasData {
		if v.err != nil {
			return errorStyle.Render("This product could not be loaded.")
		}
		return mutedStyle.Render("Loading product...")
	}
	p := v.product
	var b strings.Builder
	title := titleStyle.Render(p.Title)
	if v.flags.Liked {
		title = likedStyle.Render("♥ ") + title
	}
	b.WriteString(title)
	b.WriteString("\n")
	price := priceStyle.Render("$" + p.Price.StringFixed(2))
	if catalog.HasDiscountBadge(p) {
		price += " " + badgeStyle.Render("10% OFF")
	}
	b.WriteString(price)
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(fmt.Sprintf("★ %.1f (%d reviews) · %s", p.Rating.Rate, p.Rating.Count, p.Category)))
	b.WriteString("\n\n")
	b.WriteString(p.Description)
	b.WriteString("\n\n")

	cartAction := "a add to cart"
	if v.flags.InCart {
		cartAction = "a go to cart"
		if v.app.deps.Cart.Policy() == cart.DuplicateIncrement {
			cartAction = "a add another · g go to cart"
		}
	}
	likeAction := "l like"
	if v.flags.Liked {
		likeAction = "l unlike"
	}

	if len(v.similar) > 0 {
		b.WriteString(titleStyle.Render("Similar products"))
		b.WriteString("\n")
		for i, s := range v.similar {
			line := fmt.Sprintf("%s  $%s", s.Title, s.Price.StringFixed(2))
			if i == v.selection {
				b.WriteString(selectedStyle.Render("› " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(strings.Join([]string{likeAction, cartAction, "←/→ similar", "enter open similar"}, " · ")))
	return b.String()
}
