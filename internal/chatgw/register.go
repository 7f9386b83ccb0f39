package chatgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RelaySession is the response of a relay registration handshake: the
// session-scoped websocket URL the gateway should dial.
type RelaySession struct {
	SessionID string `json:"session_id"`
	WSURL     string `json:"ws_url"`
}

// RelayRegistrar performs a one-shot HTTP handshake against a local chat
// relay process to obtain a session-scoped websocket URL, instead of
// dialing a statically configured one. Optional: most local relays skip
// registration entirely.
type RelayRegistrar struct {
	baseURL    string
	httpClient *http.Client
}

func NewRelayRegistrar(baseURL string) *RelayRegistrar {
	return &RelayRegistrar{baseURL: baseURL, httpClient: &http.Client{}}
}

func (r *RelayRegistrar) Register(ctx context.Context) (RelaySession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/session", bytes.NewReader(nil))
	if err != nil {
		return RelaySession{}, err
	}

	res, err := r.httpClient.Do(req)
	if err != nil {
		return RelaySession{}, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return RelaySession{}, fmt.Errorf("chatgw: relay registration failed with status %d", res.StatusCode)
	}

	var out RelaySession
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return RelaySession{}, err
	}
	return out, nil
}
