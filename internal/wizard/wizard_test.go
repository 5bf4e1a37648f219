package wizard_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/UnknownOlympus/homepos-setup/internal/geocoding"
	"github.com/UnknownOlympus/homepos-setup/internal/metrics"
	"github.com/UnknownOlympus/homepos-setup/internal/models"
	"github.com/UnknownOlympus/homepos-setup/internal/wizard"
	"github.com/UnknownOlympus/homepos-setup/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const cfgPath = "dump1090.cfg"

type harness struct {
	fs       afero.Fs
	out      *bytes.Buffer
	provider *mocks.Provider
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, config string) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	if config != "" {
		require.NoError(t, afero.WriteFile(fs, cfgPath, []byte(config), 0o644))
	}
	return &harness{
		fs:       fs,
		out:      &bytes.Buffer{},
		provider: mocks.NewProvider(t),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
}

func (h *harness) options(input string) wizard.Options {
	return wizard.Options{
		Fs:           h.fs,
		ConfigFile:   cfgPath,
		Provider:     h.provider,
		ProviderName: "nominatim",
		In:           strings.NewReader(input),
		Out:          h.out,
		Metrics:      h.metrics,
	}
}

func (h *harness) file(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, cfgPath)
	require.NoError(t, err)
	return string(data)
}

func requireKind(t *testing.T, err error, want wizard.Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := wizard.KindOf(err)
	require.True(t, ok, "expected a wizard error, got %v", err)
	assert.Equal(t, want, kind)
}

func TestRun_UpdatesExistingKeys(t *testing.T) {
	h := newHarness(t, "# receiver\nhomepos = 0,0\n\nlocation = false\nnet = true\n")
	h.provider.On("Geocode", mock.Anything, "Shorewood MN").
		Return(&models.Location{Latitude: 44.9005, Longitude: -93.5894, DisplayName: "Shorewood, Minnesota"}, nil).
		Once()

	res, err := wizard.New(h.options("Shorewood MN\ny\n")).Run(t.Context())

	require.NoError(t, err)
	assert.Equal(t, "44.9005,-93.5894", res.HomePos)
	assert.True(t, res.LocationEnabled)
	assert.Equal(t, "# receiver\nhomepos = 44.9005,-93.5894\n\nlocation = true\nnet = true\n", h.file(t))

	out := h.out.String()
	assert.Contains(t, out, "Found: Shorewood, Minnesota")
	assert.Contains(t, out, "Coordinates: 44.9005, -93.5894")
	assert.Contains(t, out, "Configuration updated successfully in 'dump1090.cfg'!")
	assert.Contains(t, out, "Location services: true")

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Runs.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.KeysWritten.WithLabelValues("homepos", "updated")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.GeocodeRequests.WithLabelValues("success")), 0)
}

func TestRun_AppendsMissingKeys(t *testing.T) {
	h := newHarness(t, "net = true\n# homepos = 1,1\n")
	h.provider.On("Geocode", mock.Anything, "Greenwich").
		Return(&models.Location{Latitude: 51.4779, Longitude: -0.0015}, nil).Once()

	res, err := wizard.New(h.options("Greenwich\nnope\n")).Run(t.Context())

	require.NoError(t, err)
	assert.False(t, res.LocationEnabled)
	assert.Equal(t, "net = true\n# homepos = 1,1\nhomepos = 51.4779,-0.0015\nlocation = false\n", h.file(t))
	assert.Contains(t, h.out.String(), "Found: Unknown location")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.KeysWritten.WithLabelValues("location", "appended")), 0)
}

func TestRun_MissingConfigFile(t *testing.T) {
	h := newHarness(t, "")

	res, err := wizard.New(h.options("Shorewood MN\ny\n")).Run(t.Context())

	requireKind(t, err, wizard.KindNotFound)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "config file 'dump1090.cfg' not found")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Runs.WithLabelValues("not_found")), 0)
	h.provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestRun_EmptyLocation(t *testing.T) {
	const config = "homepos = 0,0\n"

	for name, input := range map[string]string{
		"blank line":   "   \n",
		"end of input": "",
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, config)

			_, err := wizard.New(h.options(input)).Run(t.Context())

			requireKind(t, err, wizard.KindEmptyInput)
			assert.Equal(t, config, h.file(t))
		})
	}
}

func TestRun_GeocodingFailureLeavesConfigUntouched(t *testing.T) {
	const config = "homepos = 0,0\nlocation = false\n"
	h := newHarness(t, config)
	h.provider.On("Geocode", mock.Anything, "Atlantis").
		Return(nil, geocoding.ErrNominatimEmptyResponse).Once()

	res, err := wizard.New(h.options("Atlantis\ny\n")).Run(t.Context())

	requireKind(t, err, wizard.KindRemoteFailure)
	require.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
	assert.Nil(t, res)
	assert.Equal(t, config, h.file(t))
	assert.Contains(t, h.out.String(), "No results found for that location.")
	assert.NotContains(t, h.out.String(), "Enable location services?")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.GeocodeRequests.WithLabelValues("failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Runs.WithLabelValues("remote_failure")), 0)
}

func TestRun_NetworkFailure(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	h.provider.On("Geocode", mock.Anything, "Shorewood MN").Return(nil, assert.AnError).Once()

	_, err := wizard.New(h.options("Shorewood MN\n")).Run(t.Context())

	requireKind(t, err, wizard.KindRemoteFailure)
	require.ErrorIs(t, err, assert.AnError)
	assert.NotContains(t, h.out.String(), "No results found")
}

func TestRun_WriteFailure(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	h.fs = afero.NewReadOnlyFs(h.fs)
	h.provider.On("Geocode", mock.Anything, "Shorewood MN").
		Return(&models.Location{Latitude: 1, Longitude: 2}, nil).Once()

	_, err := wizard.New(h.options("Shorewood MN\ny\n")).Run(t.Context())

	requireKind(t, err, wizard.KindIOFailure)
	assert.Contains(t, err.Error(), "failed to update configuration file")
	assert.Equal(t, "homepos = 0,0\n", h.file(t))
}

// openFailingFs reports files as present but refuses to open them.
type openFailingFs struct {
	afero.Fs
}

func (openFailingFs) Open(string) (afero.File, error) {
	return nil, assert.AnError
}

func TestRun_ReadFailure(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	h.fs = openFailingFs{Fs: h.fs}
	h.provider.On("Geocode", mock.Anything, "Shorewood MN").
		Return(&models.Location{Latitude: 1, Longitude: 2}, nil).Once()

	_, err := wizard.New(h.options("Shorewood MN\nn\n")).Run(t.Context())

	requireKind(t, err, wizard.KindIOFailure)
	require.ErrorIs(t, err, assert.AnError)
}

func TestRun_ConsoleReadFailure(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	opts := h.options("")
	opts.In = iotest.ErrReader(assert.AnError)

	_, err := wizard.New(opts).Run(t.Context())

	requireKind(t, err, wizard.KindIOFailure)
}

func TestRun_PresetAnswers(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	h.provider.On("Geocode", mock.Anything, "Greenwich").
		Return(&models.Location{Latitude: 51.4779, Longitude: -0.0015, DisplayName: "Greenwich"}, nil).Once()

	opts := h.options("")
	opts.In = nil
	opts.Location = "Greenwich"
	opts.EnableLocation = "YES"
	opts.Logger = nil

	res, err := wizard.New(opts).Run(t.Context())

	require.NoError(t, err)
	assert.True(t, res.LocationEnabled)
	assert.Equal(t, "homepos = 51.4779,-0.0015\nlocation = true\n", h.file(t))
	assert.Contains(t, h.out.String(), "Enable location services? (y/n): YES\n")
}

func TestRun_EchoInput(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	h.provider.On("Geocode", mock.Anything, "Greenwich").
		Return(&models.Location{Latitude: 51.4779, Longitude: -0.0015}, nil).Once()

	opts := h.options("Greenwich\ny\n")
	opts.EchoInput = true

	_, err := wizard.New(opts).Run(t.Context())

	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "City State'): Greenwich\n")
}

type nominatimStub struct{}

func (nominatimStub) Do(_ *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`[{"lat":"44.9005","lon":"-93.5894","display_name":"Shorewood"}]`)),
	}, nil
}

func TestRun_PrintsRequestURL(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	opts := h.options("Shorewood MN\ny\n")
	opts.Provider = geocoding.NewNominatimProviderWithClient(nominatimStub{}, slog.New(slog.DiscardHandler)).
		WithBaseURL("http://geo.local/search")

	_, err := wizard.New(opts).Run(t.Context())

	require.NoError(t, err)
	out := h.out.String()
	assert.Contains(t, out, "Querying: http://geo.local/search?q=Shorewood+MN&format=json&limit=1\n")
	assert.Contains(t, out, "Found: Shorewood\nCoordinates: 44.9005, -93.5894\n")
	assert.NotContains(t, out, "Querying nominatim for")
}

func TestRun_PrintsProviderNameWithoutURL(t *testing.T) {
	h := newHarness(t, "homepos = 0,0\n")
	h.provider.On("Geocode", mock.Anything, "Greenwich").
		Return(&models.Location{Latitude: 51.4779, Longitude: -0.0015}, nil).Once()

	_, err := wizard.New(h.options("Greenwich\nn\n")).Run(t.Context())

	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "Querying nominatim for \"Greenwich\"...\n")
}

func TestFormatHomePos(t *testing.T) {
	assert.Equal(t, "12.34,-56.78", wizard.FormatHomePos(12.34, -56.78))
	assert.Equal(t, "51,0", wizard.FormatHomePos(51, 0))
	assert.Equal(t, "44.9005012,-93.5894", wizard.FormatHomePos(44.9005012, -93.5894))
}

func TestError(t *testing.T) {
	err := &wizard.Error{Kind: wizard.KindIOFailure, Msg: "error reading config file", Err: assert.AnError}

	assert.Equal(t, "error reading config file: "+assert.AnError.Error(), err.Error())
	require.ErrorIs(t, err, assert.AnError)

	_, ok := wizard.KindOf(errors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, "not_found", wizard.KindNotFound.String())
	assert.Equal(t, "empty_input", wizard.KindEmptyInput.String())
	assert.Equal(t, "remote_failure", wizard.KindRemoteFailure.String())
	assert.Equal(t, "io_failure", wizard.KindIOFailure.String())
	assert.Equal(t, "unknown", wizard.Kind(0).String())
}
