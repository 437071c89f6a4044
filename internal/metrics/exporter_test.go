package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/controller"
	"github.com/shini4i/edr-brightness-daemon/internal/gain"
	"github.com/shini4i/edr-brightness-daemon/internal/metrics"
)

func snapshot() controller.Snapshot {
	return controller.Snapshot{
		UserPercent:   60,
		Factor:        1.3,
		EffectiveGain: 1.3,
		Active:        true,
		Cap:           gain.CapDetails{Cap: 1.5},
		Gain:          gain.State{ApplyFailures: 2, DuckLevel: 0.25},
		Auto:          auto.Status{State: auto.Enabled},
		Sensor: als.Diagnostics{
			Estimate:       als.Estimate{Lux: 32000, SmoothedX: 410},
			Available:      true,
			SaturatedTicks: 7,
			Rebinds:        1,
		},
		Recoveries: 3,
	}
}

func TestExporter_Observe(t *testing.T) {
	e := metrics.NewExporter()
	e.Observe(snapshot())

	body := scrape(t, e)
	for _, line := range []string{
		"edr_brightness_lux 32000",
		"edr_brightness_user_percent 60",
		"edr_brightness_effective_gain 1.3",
		"edr_brightness_cap 1.5",
		"edr_brightness_duck_level 0.25",
		"edr_brightness_active 1",
		"edr_brightness_sensor_available 1",
		"edr_brightness_display_not_supported 0",
		"edr_brightness_auto_state 1",
		"edr_brightness_sensor_saturated_ticks_total 7",
		"edr_brightness_sensor_rebinds_total 1",
		"edr_brightness_apply_failures_total 2",
		"edr_brightness_recoveries_total 3",
		"edr_brightness_panics_total 0",
	} {
		assert.Contains(t, body, line+"\n")
	}
}

func TestExporter_BeforeFirstSnapshot(t *testing.T) {
	e := metrics.NewExporter()

	body := scrape(t, e)
	assert.Contains(t, body, "edr_brightness_recoveries_total 0\n")
	assert.Contains(t, body, "edr_brightness_auto_state 0\n")
}

func TestExporter_LatestSnapshotWins(t *testing.T) {
	e := metrics.NewExporter()

	s := snapshot()
	e.Observe(s)
	s.Recoveries = 5
	s.Active = false
	e.Observe(s)

	n, err := testutil.GatherAndCount(e.Registry(), "edr_brightness_recoveries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	body := scrape(t, e)
	assert.Contains(t, body, "edr_brightness_recoveries_total 5\n")
	assert.Contains(t, body, "edr_brightness_active 0\n")
}

func TestExporter_Lint(t *testing.T) {
	e := metrics.NewExporter()
	e.Observe(snapshot())

	problems, err := testutil.GatherAndLint(e.Registry())
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func scrape(t *testing.T, e *metrics.Exporter) string {
	t.Helper()
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.ReplaceAll(string(b), "\r", "")
}
