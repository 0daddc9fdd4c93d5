package platform

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/rules"
)

// Sentinel errors for platform lookups, checkable with errors.Is().
var (
	// ErrNotFound is returned when the node has no record for the device.
	ErrNotFound = errors.New("platform: device not found")

	// ErrRequestFailed is returned for transport-level failures and
	// unexpected node responses.
	ErrRequestFailed = errors.New("platform: request failed")
)

// defaultTimeout bounds a single node round trip when the caller's context
// carries no deadline of its own.
const defaultTimeout = 10 * time.Second

// Client talks to a platform node's device registry API. Every request is
// signed with the device key so the node can reject lookups from strangers.
type Client struct {
	baseURL string
	network identity.NetworkID
	keys    identity.KeyPair
	http    *http.Client
}

// New creates a registry client for the given node endpoint.
func New(nodeURL string, network identity.NetworkID, keys identity.KeyPair) *Client {
	return &Client{
		baseURL: nodeURL,
		network: network,
		keys:    keys,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// GetDevice fetches the device's registry record: owner account, guest
// accounts, and status. The caller replaces its cached copy wholesale.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*identity.DeviceInfo, error) {
	var info identity.DeviceInfo
	if err := c.get(ctx, "/api/device/"+url.PathEscape(deviceID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetRules fetches the automation rules defined for the device, in
// platform order.
func (c *Client) GetRules(ctx context.Context, deviceID string) ([]rules.Rule, error) {
	var out []rules.Rule
	if err := c.get(ctx, "/api/rules/"+url.PathEscape(deviceID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs a signed GET against the node and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	// The node authenticates lookups by verifying a signature over the
	// request path with the device's registered public key.
	sig := c.keys.Sign([]byte(path))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Cyberfly-Network", string(c.network))
	req.Header.Set("X-Cyberfly-Pubkey", c.keys.PublicKeyHex())
	req.Header.Set("X-Cyberfly-Signature", hex.EncodeToString(sig))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: node returned %d: %s", ErrRequestFailed, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	return nil
}
