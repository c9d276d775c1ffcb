package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rgnets/wlanpi-mqtt-bridge/router"
)

const (
	localPrefix  = "wlan-pi"
	sharedDevice = "all"
)

// Ingest walks doc and emits two router.Route values per (path, method)
// pair: one reachable under the device's own topic prefix
// ("wlan-pi/<deviceID>/..."), and one reachable under the shared
// broadcast prefix ("wlan-pi/all/..."). Both routes execute the same HTTP
// call and publish to the same, device-local response topic, so a
// request addressed to the shared topic still only wakes this one
// device's response listener — never the herd of other devices that also
// subscribed to the shared route.
//
// Paths and their methods are visited in sorted order so that repeated
// ingestion (e.g. after a reconnect) produces routes in a stable order,
// which matters for the trie's declaration-order tie-break between
// dynamic siblings.
func Ingest(doc Document, deviceID string) []router.Route {
	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var routes []router.Route
	for _, httpPath := range paths {
		methods := doc.Methods(httpPath)
		sort.Strings(methods)

		for _, method := range methods {
			localTopic := requestTopic(localPrefix, deviceID, httpPath, method)
			sharedTopic := requestTopic(localPrefix, sharedDevice, httpPath, method)
			responseTopic := localTopic + "/_response"

			m := router.Method(strings.ToUpper(method))
			routes = append(routes, router.NewRoute(httpPath, m, localTopic, responseTopic))
			routes = append(routes, router.NewRoute(httpPath, m, sharedTopic, responseTopic))
		}
	}
	return routes
}

func requestTopic(prefix, device, httpPath, method string) string {
	path := strings.Trim(httpPath, "/")
	return fmt.Sprintf("%s/%s/%s/%s", prefix, device, path, method)
}
