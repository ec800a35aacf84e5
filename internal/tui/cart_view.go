package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/storefront/internal/cart"
	"github.com/kingrea/storefront/internal/catalog"
)

type cartLoadedMsg struct {
	cart cart.Cart
}

// cartMutatedMsg carries the engine's answer to an optimistic change.
// previous is what the screen showed before the change.
type cartMutatedMsg struct {
	cart     cart.Cart
	previous cart.Cart
	action   string
	err      error
}

type checkoutMsg struct {
	receipt cart.Receipt
	err     error
}

type cartView struct {
	app       *App
	items     cart.Cart
	selection int
	receipt   *cart.Receipt
}

func newCartView(app *App) *cartView {
	return &cartView{app: app, items: cart.Cart{}}
}

// Focus reloads the cart from the store.
func (v *cartView) Focus() tea.Cmd {
	v.receipt = nil
	app := v.app
	return func() tea.Msg {
		return cartLoadedMsg{cart: app.deps.Cart.Load(app.ctx)}
	}
}

func (v *cartView) units() int {
	return v.items.Units()
}

func (v *cartView) setItems(items cart.Cart) {
	v.items = items
	if v.selection >= len(v.items) {
		v.selection = len(v.items) - 1
	}
	if v.selection < 0 {
		v.selection = 0
	}
}

func (v *cartView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case cartLoadedMsg:
		v.setItems(m.cart)
		return nil

	case cartMutatedMsg:
		if m.err != nil {
			v.setItems(m.previous)
			v.app.showAlert(cartErrorMessage(m.action, m.err))
			if j := v.app.journal(); j != nil {
				j.Warn("Cart %s failed: %v", m.action, m.err)
			}
			return nil
		}
		v.setItems(m.cart)
		return nil

	case checkoutMsg:
		if m.err != nil {
			v.app.showAlert(cartErrorMessage("checkout", m.err))
			return v.Focus()
		}
		v.receipt = &m.receipt
		v.setItems(cart.Cart{})
		v.app.statusMsg = "Order placed"
		return nil

	case tea.KeyMsg:
		if v.receipt != nil {
			v.receipt = nil
			return v.app.focus(stateHome)
		}
		switch m.String() {
		case "up", "k":
			if v.selection > 0 {
				v.selection--
			}
		case "down", "j":
			if v.selection < len(v.items)-1 {
				v.selection++
			}
		case "+", "=", "right", "l":
			return v.changeQuantity(+1)
		case "-", "_", "left", "h":
			return v.changeQuantity(-1)
		case "d", "x", "delete":
			v.confirmRemove()
		case "c":
			v.confirmCheckout()
		case "enter":
			if item, ok := v.selected(); ok {
				v.app.product.show(item.ID, productFromLine(item))
				return v.app.navigate(stateProduct)
			}
		}
	}
	return nil
}

func (v *cartView) selected() (cart.LineItem, bool) {
	if v.selection < 0 || v.selection >= len(v.items) {
		return cart.LineItem{}, false
	}
	return v.items[v.selection], true
}

// changeQuantity applies the change on screen first, then persists it.
func (v *cartView) changeQuantity(delta int) tea.Cmd {
	item, ok := v.selected()
	if !ok {
		return nil
	}
	previous := v.items.Clone()
	next := v.items.Clone()
	qty := item.Quantity + delta
	if qty < 1 {
		qty = 1
	}
	if qty == item.Quantity {
		return nil
	}
	next[v.selection].Quantity = qty
	v.items = next
	app := v.app
	return func() tea.Msg {
		updated, err := app.deps.Cart.UpdateQuantity(app.ctx, item.ID, delta)
		return cartMutatedMsg{cart: updated, previous: previous, action: "update", err: err}
	}
}

func (v *cartView) confirmRemove() {
	item, ok := v.selected()
	if !ok {
		return
	}
	v.app.ask(fmt.Sprintf("Remove %s from your cart?", item.Title), func() tea.Cmd {
		return v.remove(item.ID)
	})
}

func (v *cartView) remove(id int) tea.Cmd {
	idx := v.items.Index(id)
	if idx < 0 {
		return nil
	}
	previous := v.items.Clone()
	next := v.items.Clone()
	v.setItems(append(next[:idx], next[idx+1:]...))
	app := v.app
	return func() tea.Msg {
		updated, err := app.deps.Cart.RemoveItem(app.ctx, id)
		return cartMutatedMsg{cart: updated, previous: previous, action: "remove", err: err}
	}
}

func (v *cartView) confirmCheckout() {
	if len(v.items) == 0 {
		v.app.showAlert("Your cart is empty")
		return
	}
	summary := v.app.deps.Cart.Summarize(v.items)
	v.app.ask(fmt.Sprintf("Place order for $%s?", summary.TotalText()), func() tea.Cmd {
		app := v.app
		return app.track(func() tea.Msg {
			receipt, err := app.deps.Cart.Checkout(app.ctx)
			return checkoutMsg{receipt: receipt, err: err}
		})
	})
}

func cartErrorMessage(action string, err error) string {
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, cart.ErrItemNotInCart):
		return "That item is no longer in your cart"
	}
	return fmt.Sprintf("Could not %s your cart. Please try again.", action)
}

func (v *cartView) View() string {
	if v.receipt != nil {
		return v.renderReceipt()
	}
	if len(v.items) == 0 {
		return titleStyle.Render("Your cart is empty") + "\n" + mutedStyle.Render("1 browse products")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cart"))
	b.WriteString("\n\n")
	for i, item := range v.items {
		line := fmt.Sprintf("%-40s  %2d × $%s = $%s",
			truncate(item.Title, 40), item.Quantity, item.Price.StringFixed(2), item.LineTotal().StringFixed(2))
		if i == v.selection {
			b.WriteString(selectedStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(v.renderSummary(v.app.deps.Cart.Summarize(v.items)))
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("+/- quantity · d remove · c checkout · enter view"))
	return b.String()
}

func (v *cartView) renderSummary(s cart.PriceSummary) string {
	if s.Empty {
		return fmt.Sprintf("Total   $%s", s.TotalText())
	}
	lines := []string{
		detailStyle.Render(fmt.Sprintf("Subtotal  $%s", s.SubtotalText())),
		detailStyle.Render(fmt.Sprintf("Tax       $%s", s.TaxText())),
		detailStyle.Render(fmt.Sprintf("Delivery  $%s", s.DeliveryText())),
		priceStyle.Render(fmt.Sprintf("Total     $%s", s.TotalText())),
	}
	return strings.Join(lines, "\n")
}

func (v *cartView) renderReceipt() string {
	r := v.receipt
	var b strings.Builder
	b.WriteString(titleStyle.Render("Thank you for your order"))
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(fmt.Sprintf("Order %s · %s · %s", r.ShortID(), r.Status, r.PlacedAt.Format("2006-01-02 15:04"))))
	b.WriteString("\n\n")
	for _, item := range r.Items {
		b.WriteString(fmt.Sprintf("  %s × %d\n", truncate(item.Title, 40), item.Quantity))
	}
	b.WriteString("\n")
	b.WriteString(v.renderSummary(r.Summary))
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("press any key to continue shopping"))
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// productFromLine rebuilds the catalog view of a cart line so the detail
// screen has something to render before the fresh copy arrives.
func productFromLine(item cart.LineItem) catalog.Product {
	return catalog.Product{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Image:       item.Image,
		Category:    item.Category,
		Price:       item.Price,
		Rating:      item.Rating,
	}
}
