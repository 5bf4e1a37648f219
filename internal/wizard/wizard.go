// Package wizard runs the interactive setup: it asks for a location,
// geocodes it and stores the result in the dump1090 configuration file.
package wizard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/homepos-setup/internal/cfgfile"
	"github.com/UnknownOlympus/homepos-setup/internal/geocoding"
	"github.com/UnknownOlympus/homepos-setup/internal/metrics"
	"github.com/UnknownOlympus/homepos-setup/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// Configuration keys written by the wizard.
const (
	KeyHomePos  = "homepos"
	KeyLocation = "location"
)

const (
	locationPrompt = "Enter your location (e.g., 'Shorewood MN' or '123 Main St, City State'): "
	enablePrompt   = "Enable location services? (y/n): "
	ruleWidth      = 50
)

// Options configures a Wizard.
type Options struct {
	Fs           afero.Fs           // Fs holds the config file.
	ConfigFile   string             // ConfigFile is the path of the dump1090 config file.
	Provider     geocoding.Provider // Provider geocodes the location query.
	ProviderName string             // ProviderName labels output and metrics.
	In           io.Reader          // In supplies prompt answers.
	Out          io.Writer          // Out receives prompts and progress messages.
	Logger       *slog.Logger
	Metrics      *metrics.Metrics

	// Location and EnableLocation pre-answer the prompts when non-empty.
	Location       string
	EnableLocation string
	// EchoInput repeats each answer on Out, for non-terminal input.
	EchoInput bool
}

// Result describes what a successful run wrote.
type Result struct {
	Location        models.Location
	HomePos         string
	LocationEnabled bool
}

// Wizard walks through the setup steps once.
type Wizard struct {
	opts Options
	in   *bufio.Reader
}

// New creates a Wizard from opts. A nil Logger discards logs, nil Metrics
// are registered on a private registry and a nil In reads as EOF.
func New(opts Options) *Wizard {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if opts.In == nil {
		opts.In = strings.NewReader("")
	}
	return &Wizard{opts: opts, in: bufio.NewReader(opts.In)}
}

// Run performs the setup. Steps run in order and the first failure ends
// the run with an *Error; the config file is written only in the last step.
func (w *Wizard) Run(ctx context.Context) (res *Result, err error) {
	defer func() {
		result := "ok"
		if kind, ok := KindOf(err); ok {
			result = kind.String()
		}
		w.opts.Metrics.Runs.WithLabelValues(result).Inc()
	}()

	w.printf("=== Dump1090 Configuration Setup ===\n\n")

	exists, err := cfgfile.Exists(w.opts.Fs, w.opts.ConfigFile)
	if err != nil {
		return nil, newError(KindIOFailure, "cannot check config file", err)
	}
	if !exists {
		return nil, newError(KindNotFound, fmt.Sprintf(
			"config file '%s' not found; run from the dump1090 directory or pass --config",
			w.opts.ConfigFile), nil)
	}

	query, err := w.answer(locationPrompt, w.opts.Location)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, newError(KindEmptyInput, "no location entered", nil)
	}

	loc, err := w.geocode(ctx, query)
	if err != nil {
		return nil, newError(KindRemoteFailure, "failed to get coordinates", err)
	}

	w.printf("\n%s\n", strings.Repeat("=", ruleWidth))
	answer, err := w.answer(enablePrompt, w.opts.EnableLocation)
	if err != nil {
		return nil, err
	}
	enabled := isYes(answer)

	lines, err := cfgfile.Read(w.opts.Fs, w.opts.ConfigFile)
	if err != nil {
		if errors.Is(err, cfgfile.ErrNotFound) {
			return nil, newError(KindNotFound, "config file disappeared", err)
		}
		return nil, newError(KindIOFailure, "error reading config file", err)
	}

	homePos := FormatHomePos(loc.Latitude, loc.Longitude)
	locationSetting := strconv.FormatBool(enabled)

	w.printf("\nUpdating homepos to: %s\n", homePos)
	w.set(ctx, &lines, KeyHomePos, homePos)
	w.printf("Setting location services to: %s\n", locationSetting)
	w.set(ctx, &lines, KeyLocation, locationSetting)

	if err = cfgfile.Write(w.opts.Fs, w.opts.ConfigFile, lines); err != nil {
		return nil, newError(KindIOFailure, "failed to update configuration file", err)
	}

	w.printf("\nConfiguration updated successfully in '%s'!\n", w.opts.ConfigFile)
	w.printf("Home position: %s\n", homePos)
	w.printf("Location services: %s\n", locationSetting)

	return &Result{Location: *loc, HomePos: homePos, LocationEnabled: enabled}, nil
}

func (w *Wizard) geocode(ctx context.Context, query string) (*models.Location, error) {
	w.printQuerying(query)

	start := time.Now()
	loc, err := w.opts.Provider.Geocode(ctx, query)
	w.opts.Metrics.RequestSeconds.WithLabelValues(w.opts.ProviderName).Observe(time.Since(start).Seconds())

	if err != nil {
		w.opts.Metrics.GeocodeRequests.WithLabelValues("failure").Inc()
		w.opts.Logger.DebugContext(ctx, "Failed to geocode", "query", query, "error", err)
		if errors.Is(err, geocoding.ErrNominatimEmptyResponse) || errors.Is(err, geocoding.ErrEmptyResponse) ||
			errors.Is(err, geocoding.ErrVisicomEmptyResponse) {
			w.printf("No results found for that location.\n")
		}
		return nil, err
	}
	w.opts.Metrics.GeocodeRequests.WithLabelValues("success").Inc()

	name := loc.DisplayName
	if name == "" {
		name = "Unknown location"
	}
	w.printf("Found: %s\n", name)
	w.printf("Coordinates: %s, %s\n", formatCoord(loc.Latitude), formatCoord(loc.Longitude))

	return loc, nil
}

// printQuerying shows the request URL when the provider can describe it
// without leaking credentials, and the provider name otherwise.
func (w *Wizard) printQuerying(query string) {
	if describer, ok := w.opts.Provider.(geocoding.URLDescriber); ok {
		if reqURL, err := describer.RequestURL(query); err == nil {
			w.printf("Querying: %s\n", reqURL)
			return
		}
	}
	w.printf("Querying %s for %q...\n", w.opts.ProviderName, query)
}

func (w *Wizard) set(ctx context.Context, lines *cfgfile.Lines, key, value string) {
	previous, had := lines.Get(key)
	action := "appended"
	if lines.Set(key, value) {
		action = "updated"
	}
	w.opts.Metrics.KeysWritten.WithLabelValues(key, action).Inc()
	w.opts.Logger.DebugContext(ctx, "Config key written",
		"key", key, "value", value, "action", action, "previous", previous, "had_previous", had)
}

// answer prints prompt and returns the trimmed reply. A preset answer skips
// the console. EOF counts as an empty reply.
func (w *Wizard) answer(prompt, preset string) (string, error) {
	w.printf("%s", prompt)
	if preset != "" {
		w.printf("%s\n", preset)
		return strings.TrimSpace(preset), nil
	}

	line, err := w.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", newError(KindIOFailure, "failed to read answer", err)
	}
	line = strings.TrimSpace(line)
	if w.opts.EchoInput {
		w.printf("%s\n", line)
	}
	return line, nil
}

func (w *Wizard) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.opts.Out, format, args...)
}

// isYes accepts exactly "y" or "yes", case-insensitively.
func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// FormatHomePos renders a homepos value: "<lat>,<lon>" with the shortest
// decimal form of each coordinate.
func FormatHomePos(lat, lon float64) string {
	return formatCoord(lat) + "," + formatCoord(lon)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
