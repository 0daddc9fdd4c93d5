package identity

import "time"

// NetworkID identifies the platform network environment a device belongs to.
type NetworkID string

const (
	NetworkMainnet NetworkID = "mainnet01"
	NetworkTestnet NetworkID = "testnet04"
)

// Valid reports whether the network ID is one the platform operates.
func (n NetworkID) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}

// Identity is the device's immutable identity on the platform.
//
// All fields are fixed at construction; only the re-fetched DeviceInfo
// metadata (held by the agent, not here) is mutable.
type Identity struct {
	// DeviceID is globally unique within the platform's namespace and
	// doubles as the device's inbound MQTT topic.
	DeviceID string

	// Keys is the device's ed25519 signing key pair.
	Keys KeyPair

	// Account is derived from the public key ("k:" + hex public key).
	Account string

	// Network is the platform network environment.
	Network NetworkID

	// NodeURL is the platform node endpoint for registry lookups.
	NodeURL string
}

// DeviceInfo is the platform's mutable metadata for a device.
//
// It is replaced wholesale on every refresh and owned exclusively by the
// agent; the authenticator reads the owner account and guest ACL from it.
type DeviceInfo struct {
	DeviceID string    `json:"device_id"`
	Name     string    `json:"name,omitempty"`
	Owner    string    `json:"device_owner"`
	Guests   []string  `json:"guests,omitempty"`
	Status   string    `json:"status,omitempty"`
	Updated  time.Time `json:"updated_at,omitempty"`
}

// Authorized reports whether the given account may command this device.
//
// The device owner is always authorized; guest accounts come from the
// platform-managed access-control list.
func (d *DeviceInfo) Authorized(account string) bool {
	if d == nil || account == "" {
		return false
	}
	if account == d.Owner {
		return true
	}
	for _, g := range d.Guests {
		if account == g {
			return true
		}
	}
	return false
}
