package mqtt

// Topic helpers for the CyberFly platform's flat topic scheme.
//
// A device's inbound command channel is simply its device ID; replies go to
// whatever response topic the command declared. Presence announcements use a
// dedicated status suffix so the platform can track device availability.

// statusSuffix is appended to a device topic for presence messages.
const statusSuffix = "/status"

// Topics provides topic construction for the platform's conventions.
type Topics struct{}

// Device returns the inbound command topic for a device.
func (Topics) Device(deviceID string) string {
	return deviceID
}

// DeviceStatus returns the presence topic for a device.
func (Topics) DeviceStatus(deviceID string) string {
	return deviceID + statusSuffix
}
