package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunDreame/st-bridge/internal/domain/model"
	"github.com/lunDreame/st-bridge/internal/logger"
)

func TestStatesFiltersUnsupportedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/states", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"entity_id": "light.kitchen", "state": "on", "attributes": map[string]any{
				"friendly_name": "Kitchen", "brightness": 128.0,
			}},
			{"entity_id": "sensor.outside_temp", "state": "12.4"},
			{"entity_id": "fan.office", "state": "off", "attributes": map[string]any{"percentage": 0.0}},
		})
	}))
	defer srv.Close()

	c := NewClient(logger.Get(logger.ErrorLevel))
	c.Configure(srv.URL, "tok")

	states, err := c.States(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2, "sensor is not a bridged domain")
	assert.Equal(t, "Kitchen", states[0].Name)
	assert.Equal(t, model.DomainLight, states[0].Domain)
	assert.Equal(t, model.DomainFan, states[1].Domain)
}

func TestStatesNotConfigured(t *testing.T) {
	c := NewClient(logger.Get(logger.ErrorLevel))
	assert.False(t, c.IsConfigured())

	_, err := c.States(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Events(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCallService(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer srv.Close()

	c := NewClient(logger.Get(logger.ErrorLevel))
	c.Configure(srv.URL+"/", "tok") // trailing slash is trimmed

	err := c.CallService(context.Background(), model.ServiceCall{
		Domain:  "light",
		Service: "turn_on",
		Data:    map[string]any{"entity_id": "light.kitchen", "brightness": 128.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/services/light/turn_on", gotPath)
	assert.Equal(t, "light.kitchen", gotBody["entity_id"])
}

func TestCallServiceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(logger.Get(logger.ErrorLevel))
	c.Configure(srv.URL, "tok")

	err := c.CallService(context.Background(), model.ServiceCall{
		Domain: "climate", Service: "set_hvac_mode",
		Data: map[string]any{"entity_id": "climate.living_room"},
	})
	assert.Error(t, err)
}

func TestEntityFromRaw(t *testing.T) {
	e, ok := entityFromRaw(map[string]any{
		"entity_id": "switch.heater",
		"state":     "on",
	})
	require.True(t, ok)
	assert.Equal(t, "switch.heater", e.Name, "entity id fallback when friendly_name missing")
	assert.Equal(t, model.DomainSwitch, e.Domain)

	_, ok = entityFromRaw(map[string]any{"entity_id": "cover.garage", "state": "open"})
	assert.False(t, ok)
}
