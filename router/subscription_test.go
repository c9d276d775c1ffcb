package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanSubscriptionsWildcardizesDynamicSegments(t *testing.T) {
	out := PlanSubscriptions([]string{"wlan-pi/{id}/interfaces/{name}/get"})
	assert.Equal(t, []string{"wlan-pi/+/interfaces/+/get"}, out)
}

func TestPlanSubscriptionsDedupes(t *testing.T) {
	out := PlanSubscriptions([]string{
		"wlan-pi/{id}/interfaces/{name}/get",
		"wlan-pi/{id}/interfaces/{iface}/get",
		"wlan-pi/{id}/status",
	})
	assert.Equal(t, []string{"wlan-pi/+/interfaces/+/get", "wlan-pi/+/status"}, out)
}

func TestPlanSubscriptionsNoWildcardsLeftStatic(t *testing.T) {
	out := PlanSubscriptions([]string{"wlan-pi/all/status"})
	assert.Equal(t, []string{"wlan-pi/all/status"}, out)
}
