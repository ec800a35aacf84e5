// Package catalog reads products and categories from the storefront REST API
// and implements the client-side browse helpers (sort, filter, similar).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kingrea/storefront/internal/api"
)

// Lookup resolves a single product. Favorites hydration and the product
// detail screen depend on this narrow view of the service.
type Lookup interface {
	Product(ctx context.Context, id int) (Product, error)
}

// LookupError reports a catalog failure for one product or listing.
type LookupError struct {
	ProductID int
	Category  string
	Err       error
}

func (e *LookupError) Error() string {
	switch {
	case e.ProductID != 0:
		return fmt.Sprintf("catalog: product %d: %v", e.ProductID, e.Err)
	case e.Category != "":
		return fmt.Sprintf("catalog: category %q: %v", e.Category, e.Err)
	default:
		return fmt.Sprintf("catalog: %v", e.Err)
	}
}

func (e *LookupError) Unwrap() error { return e.Err }

// NotFound reports whether the product no longer exists upstream.
func (e *LookupError) NotFound() bool {
	return errors.Is(e.Err, api.ErrEmptyResponse) || api.StatusCode(e.Err) == http.StatusNotFound
}

// UserMessage is the alert text for this failure.
func (e *LookupError) UserMessage() string {
	if e.NotFound() {
		return "This product is no longer available"
	}
	var apiErr *api.Error
	if errors.As(e.Err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Something went wrong"
}

// Service is the Product Catalog Service client.
type Service struct {
	client *api.Client
}

// NewService wraps an API client.
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Product fetches one product by id.
func (s *Service) Product(ctx context.Context, id int) (Product, error) {
	var p Product
	if err := s.client.Get(ctx, "/products/"+strconv.Itoa(id), &p); err != nil {
		return Product{}, &LookupError{ProductID: id, Err: err}
	}
	if p.ID == 0 {
		return Product{}, &LookupError{ProductID: id, Err: api.ErrEmptyResponse}
	}
	return p, nil
}

// Products lists the whole catalog in API order.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.client.Get(ctx, "/products", &products); err != nil {
		return nil, &LookupError{Err: err}
	}
	return products, nil
}

// ProductsByCategory lists products of one category.
func (s *Service) ProductsByCategory(ctx context.Context, name string) ([]Product, error) {
	var products []Product
	if err := s.client.Get(ctx, "/products/category/"+url.PathEscape(name), &products); err != nil {
		return nil, &LookupError{Category: name, Err: err}
	}
	return products, nil
}

// Categories lists category names.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := s.client.Get(ctx, "/products/categories", &categories); err != nil {
		return nil, &LookupError{Err: err}
	}
	return categories, nil
}
