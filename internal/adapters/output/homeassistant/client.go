package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lunDreame/st-bridge/internal/domain/model"
	"github.com/lunDreame/st-bridge/internal/logger"
)

// ErrNotConfigured is returned before Configure has supplied URL and token.
var ErrNotConfigured = errors.New("homeassistant: not configured")

const statesCacheTTL = 2 * time.Second

// Client talks to Home Assistant: REST for state snapshots and service
// calls, websocket for the state_changed event stream.
type Client struct {
	httpClient *http.Client
	log        *logger.Logger

	mu    sync.RWMutex
	url   string
	token string

	cacheStates []model.EntityState
	cacheTime   time.Time
}

func NewClient(log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (c *Client) Configure(url, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = strings.TrimSuffix(url, "/")
	c.token = token
}

func (c *Client) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url != "" && c.token != ""
}

func (c *Client) credentials() (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.url == "" || c.token == "" {
		return "", "", ErrNotConfigured
	}
	return c.url, c.token, nil
}

// States returns a snapshot of all supported-domain entities. Responses are
// cached briefly to absorb bursts of lookups.
func (c *Client) States(ctx context.Context) ([]model.EntityState, error) {
	c.mu.RLock()
	if time.Since(c.cacheTime) < statesCacheTTL {
		res := c.cacheStates
		c.mu.RUnlock()
		return res, nil
	}
	c.mu.RUnlock()

	url, token, err := c.credentials()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/states", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("homeassistant: states: status %d", resp.StatusCode)
	}

	var raw []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	states := make([]model.EntityState, 0, len(raw))
	for _, s := range raw {
		if e, ok := entityFromRaw(s); ok {
			states = append(states, e)
		}
	}

	c.mu.Lock()
	c.cacheStates = states
	c.cacheTime = time.Now()
	c.mu.Unlock()
	return states, nil
}

// CallService invokes one Home Assistant service.
func (c *Client) CallService(ctx context.Context, call model.ServiceCall) error {
	url, token, err := c.credentials()
	if err != nil {
		return err
	}
	if call.Domain == "" || call.Service == "" {
		return fmt.Errorf("homeassistant: incomplete service call %q/%q", call.Domain, call.Service)
	}

	body, err := json.Marshal(call.Data)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/services/%s/%s", url, call.Domain, call.Service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("homeassistant: %s.%s: status %d", call.Domain, call.Service, resp.StatusCode)
	}
	return nil
}

// entityFromRaw converts one raw /api/states element, dropping entities
// outside the bridged domains.
func entityFromRaw(s map[string]any) (model.EntityState, bool) {
	entityID, _ := s["entity_id"].(string)
	domain := model.DomainOf(entityID)
	if !domain.Supported() {
		return model.EntityState{}, false
	}

	state, _ := s["state"].(string)
	attributes, _ := s["attributes"].(map[string]any)
	name, _ := attributes["friendly_name"].(string)
	if name == "" {
		name = entityID
	}

	return model.EntityState{
		EntityID:   entityID,
		Name:       name,
		Domain:     domain,
		State:      state,
		Attributes: attributes,
	}, true
}
