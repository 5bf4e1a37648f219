package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UnknownOlympus/homepos-setup/internal/models"
)

const (
	// NominatimBaseURL is the public OpenStreetMap Nominatim search endpoint.
	NominatimBaseURL = "https://nominatim.openstreetmap.org/search"
	// DefaultUserAgent identifies the tool to Nominatim.
	// User-Agent MUST include valid contact info per Nominatim usage policy:
	// https://operations.osmfoundation.org/policies/nominatim/
	DefaultUserAgent = "homepos-setup/1.0 (https://github.com/UnknownOlympus/homepos-setup)"
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client    HTTPClient   // HTTP client for making requests
	baseURL   string       // Base URL for the Nominatim API
	log       *slog.Logger // Logger for logging operations
	userAgent string       // userAgent is required by Nominatim usage policy
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimResponse represents one candidate of the JSON array returned by Nominatim.
type nominatimResponse struct {
	Lat         string `json:"lat"`          // Latitude as string
	Lon         string `json:"lon"`          // Longitude as string
	DisplayName string `json:"display_name"` // Optional full place name
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimProvider creates a new Nominatim geocoding provider using the public endpoint.
// A zero timeout leaves the HTTP client unbounded.
func NewNominatimProvider(timeout time.Duration, log *slog.Logger) *NominatimProvider {
	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout}, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(client HTTPClient, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:    client,
		baseURL:   NominatimBaseURL,
		log:       log,
		userAgent: DefaultUserAgent,
	}
}

// WithBaseURL points the provider at another Nominatim instance (e.g. self-hosted).
func (np *NominatimProvider) WithBaseURL(baseURL string) *NominatimProvider {
	if baseURL != "" {
		np.baseURL = baseURL
	}
	return np
}

// WithUserAgent overrides the User-Agent header sent with every request.
func (np *NominatimProvider) WithUserAgent(userAgent string) *NominatimProvider {
	if userAgent != "" {
		np.userAgent = userAgent
	}
	return np
}

// Geocode converts a free-text location to geographic coordinates using the Nominatim API.
// It issues exactly one request and returns the first candidate of the result array.
func (np *NominatimProvider) Geocode(ctx context.Context, query string) (*models.Location, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "query", query)

	reqURL, err := np.RequestURL(query)
	if err != nil {
		return nil, err
	}

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", np.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	np.log.DebugContext(ctx, "Nominatim raw response", "body", string(body))

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNominatimEmptyResponse
	}

	first := results[0]
	np.log.DebugContext(ctx, "Nominatim found result",
		"lat", first.Lat, "lon", first.Lon, "candidates", len(results))

	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, first.Lat)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, first.Lon)
	}

	return &models.Location{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: first.DisplayName,
	}, nil
}

// RequestURL returns the search URL Geocode requests for query. Parameters
// keep the order q, format, limit after any query already on the base URL.
func (np *NominatimProvider) RequestURL(query string) (string, error) {
	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	search := "q=" + url.QueryEscape(query) + "&format=json&limit=1" // only the top result is used
	if reqURL.RawQuery != "" {
		search = reqURL.RawQuery + "&" + search
	}
	reqURL.RawQuery = search

	return reqURL.String(), nil
}
