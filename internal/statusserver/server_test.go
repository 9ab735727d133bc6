package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/lab-assistant/internal/config"
	"github.com/kingrea/lab-assistant/internal/engine"
	"github.com/kingrea/lab-assistant/internal/procedure"
)

type providerFunc func(ctx context.Context) (engine.State, error)

func (f providerFunc) Snapshot(ctx context.Context) (engine.State, error) { return f(ctx) }

func staticProvider(t *testing.T, steps []procedure.Step, ticks int) SnapshotProvider {
	t.Helper()
	eng := engine.New()
	require.NoError(t, eng.Load(steps))
	for i := 0; i < ticks; i++ {
		eng.Tick()
	}
	state := eng.Snapshot()
	return providerFunc(func(context.Context) (engine.State, error) { return state, nil })
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSnapshotRendersTimers(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := staticProvider(t, []procedure.Step{
		{Order: 0, Title: "Develop", Duration: procedure.Seconds(30),
			Substep: &procedure.Substep{Title: "Agitate", Active: 10 * time.Second, Rest: 5 * time.Second}},
	}, 10)
	srv := NewServer(Settings{}, provider, WithProcedureName("HP5+ in DD-X"), WithClock(func() time.Time { return fixed }))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "HP5+ in DD-X", body["procedure"])
	assert.Equal(t, "Develop", body["title"])
	assert.Equal(t, float64(20), body["primary_remaining_seconds"])
	substep, ok := body["substep"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "resting", substep["phase"])
	assert.Equal(t, float64(5), substep["remaining_seconds"])
	assert.Equal(t, "Agitate", substep["title"])
	assert.Equal(t, "2024-06-01T12:00:00Z", body["server_time"])
}

func TestSnapshotUsesNullForMissingTimers(t *testing.T) {
	provider := staticProvider(t, []procedure.Step{{Order: 0, Title: "Mix chemicals"}}, 3)
	srv := NewServer(Settings{}, provider)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	primary, present := body["primary_remaining_seconds"]
	assert.True(t, present)
	assert.Nil(t, primary)
	substep, present := body["substep"]
	assert.True(t, present)
	assert.Nil(t, substep)
}

func TestSnapshotProviderError(t *testing.T) {
	srv := NewServer(Settings{}, providerFunc(func(context.Context) (engine.State, error) {
		return engine.State{}, errors.New("runner: session stopped")
	}))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRejectsWrites(t *testing.T) {
	srv := NewServer(Settings{}, staticProvider(t, []procedure.Step{{Order: 0, Title: "x"}}, 0))
	for _, path := range []string{"/snapshot", "/healthz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)
	}
}

func TestServerStartServesHealth(t *testing.T) {
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings, staticProvider(t, []procedure.Step{{Order: 0, Title: "x"}}, 0))
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	assert.Error(t, srv.Start(context.Background()))

	resp, err := http.Get(srv.BaseURL() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Addr())
}

func TestStartDisabled(t *testing.T) {
	srv := NewServer(Settings{Enabled: false}, nil)
	assert.ErrorIs(t, srv.Start(context.Background()), ErrDisabled)
}

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	cfg := &config.Config{File: config.FileConfig{StatusServer: config.StatusServerConfig{Enabled: true, Host: "127.0.0.1", Port: 9100}}}
	t.Setenv(EnabledEnv, "")
	t.Setenv(HostEnv, "")
	t.Setenv(PortEnv, "")
	settings := SettingsFromConfig(cfg)
	assert.True(t, settings.Enabled)
	assert.Equal(t, "127.0.0.1:9100", settings.Address())

	t.Setenv(PortEnv, "9001")
	t.Setenv(HostEnv, "0.0.0.0")
	t.Setenv(EnabledEnv, "false")
	settings = SettingsFromConfig(cfg)
	assert.Equal(t, 9001, settings.Port)
	assert.Equal(t, "0.0.0.0", settings.Host)
	assert.False(t, settings.Enabled)
}

func TestSettingsDefaultsWithoutConfig(t *testing.T) {
	t.Setenv(EnabledEnv, "")
	t.Setenv(HostEnv, "")
	t.Setenv(PortEnv, "")
	defaults := SettingsFromConfig(nil)
	assert.False(t, defaults.Enabled)
	assert.Equal(t, DefaultHost, defaults.Host)
	assert.Equal(t, DefaultPort, defaults.Port)
	assert.Equal(t, DefaultReadTimeout, defaults.ReadTimeout)

	t.Setenv(PortEnv, "9001")
	assert.Equal(t, 9001, SettingsFromConfig(nil).Port, "env applies on top of the defaults")
}

func TestResolveSettingsRejectsBadValues(t *testing.T) {
	cfg := &config.Config{File: config.FileConfig{StatusServer: config.StatusServerConfig{Host: "lab.local", Port: 9100}}}
	vars := map[string]string{
		EnabledEnv: "sometimes",
		HostEnv:    "not a host!",
		PortEnv:    "70000",
	}
	lookup := func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok
	}

	settings, problems := ResolveSettings(cfg, lookup)
	assert.False(t, settings.Enabled)
	assert.Equal(t, "lab.local", settings.Host, "config host survives a bad override")
	assert.Equal(t, 9100, settings.Port)
	require.Len(t, problems, 3)
	assert.Contains(t, problems[0].Error(), EnabledEnv)
	assert.Contains(t, problems[1].Error(), HostEnv+" must be a hostname or IP address")
	assert.Contains(t, problems[2].Error(), PortEnv+" must be at most 65535")

	vars = map[string]string{PortEnv: "abc"}
	settings, problems = ResolveSettings(nil, lookup)
	assert.Equal(t, DefaultPort, settings.Port)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Error(), "not a number")

	settings, problems = ResolveSettings(nil, nil)
	assert.Empty(t, problems)
	assert.Equal(t, DefaultHost+":8765", settings.Address())
}
