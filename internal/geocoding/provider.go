package geocoding

import (
	"context"

	"github.com/UnknownOlympus/homepos-setup/internal/models"
)

// Provider is an interface that defines a method for geocoding a free-text location.
// The Geocode method takes a context and a query string as input,
// and returns the best matching location and an error if any occurs.
type Provider interface {
	Geocode(ctx context.Context, query string) (*models.Location, error)
}

// URLDescriber is implemented by providers whose request URL can be shown
// to the user. Providers that put credentials in the URL do not implement it.
type URLDescriber interface {
	RequestURL(query string) (string, error)
}
