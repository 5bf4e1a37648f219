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
	"time"

	"github.com/UnknownOlympus/homepos-setup/internal/models"
	"golang.org/x/time/rate"
)

// VisicomBaseURL is the Visicom data API geocoding endpoint.
const VisicomBaseURL = "https://api.visicom.ua/data-api/5.0/uk/geocode.json"

// VisicomProvider geocodes through the Visicom data API. Requests are
// throttled by a token bucket before they leave the process.
type VisicomProvider struct {
	client  HTTPClient
	baseURL string
	apiKey  string
	log     *slog.Logger
	limiter *rate.Limiter
}

// Errors returned by the Visicom provider.
var (
	ErrVisicomEmptyResponse = errors.New("visicom API returned empty response")
	ErrVisicomEmptyAddress  = errors.New("visicom provider got empty address")
	ErrVisicomInvalidCoords = errors.New("visicom API returned invalid coordinates")
	ErrVisicomUnauthorized  = errors.New("visicom API unauthorized (invalid API key)")
)

// visicomFeature is the part of a Visicom GeoJSON feature the tool reads.
type visicomFeature struct {
	Centroid struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geo_centroid"`
	Properties struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"properties"`
}

func (f visicomFeature) displayName() string {
	switch {
	case f.Properties.Address == "":
		return f.Properties.Name
	case f.Properties.Name == "":
		return f.Properties.Address
	default:
		return f.Properties.Name + ", " + f.Properties.Address
	}
}

// NewVisicomProvider creates a Visicom provider allowing rateLimit requests
// per second. A zero timeout leaves the HTTP client unbounded.
func NewVisicomProvider(apiKey string, rateLimit int, timeout time.Duration, log *slog.Logger) *VisicomProvider {
	limiter := rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	return NewVisicomProviderWithClient(&http.Client{Timeout: timeout}, apiKey, limiter, log)
}

// NewVisicomProviderWithClient allows injecting custom HTTP client and limiter.
func NewVisicomProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *VisicomProvider {
	return &VisicomProvider{
		client:  client,
		baseURL: VisicomBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode returns the best Visicom match for query.
func (vp *VisicomProvider) Geocode(ctx context.Context, query string) (*models.Location, error) {
	if err := vp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	vp.log.DebugContext(ctx, "Geocoding using Visicom", "query", query)

	if query == "" {
		return nil, ErrVisicomEmptyAddress
	}

	body, err := vp.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	var feature visicomFeature
	if err = json.Unmarshal(body, &feature); err != nil {
		return nil, fmt.Errorf("failed to decode visicom response: %w", err)
	}

	switch coords := feature.Centroid.Coordinates; len(coords) {
	case 0:
		return nil, ErrVisicomEmptyResponse
	case 2:
		loc := &models.Location{
			Latitude:    coords[1],
			Longitude:   coords[0],
			DisplayName: feature.displayName(),
		}
		vp.log.DebugContext(ctx, "Visicom found result",
			"query", query, "lat", loc.Latitude, "lon", loc.Longitude)
		return loc, nil
	default:
		return nil, ErrVisicomInvalidCoords
	}
}

// fetch performs the GET request and returns the body of a 200 response.
// The request URL carries the API key and is never logged.
func (vp *VisicomProvider) fetch(ctx context.Context, query string) ([]byte, error) {
	reqURL, err := url.Parse(vp.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("text", query)
	params.Set("limit", "1")
	params.Set("key", vp.apiKey)
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := vp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		vp.log.DebugContext(ctx, "Visicom raw response", "body", string(body))
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrVisicomUnauthorized
	default:
		vp.log.ErrorContext(ctx, "Visicom API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("visicom API returned status %d: %s", resp.StatusCode, string(body))
	}
}
