package messenger

import "path"

// Fixed, non-OpenAPI-derived topics the bridge publishes to on its own
// (lifecycle status and the OpenAPI document snapshot). Route-derived
// request/response topics are built by the openapi and router packages
// instead, since they depend on the ingested OpenAPI document.
const (
	devicePrefix = "wlan-pi"
)

// StatusTopic returns the topic the bridge publishes its lifecycle status
// ("Connected"/"Disconnected") to for the given device id.
func StatusTopic(deviceID string) string {
	return path.Join(devicePrefix, deviceID, "status")
}

// OpenAPITopic returns the topic the bridge publishes the ingested OpenAPI
// document to after every successful fetch.
func OpenAPITopic(deviceID string) string {
	return path.Join(devicePrefix, deviceID, "openapi")
}
