package router

import "strings"

// PlanSubscriptions converts a set of registered template topics into the
// MQTT wildcard subscriptions that cover them: every "{name}" segment
// becomes a single-level "+" wildcard, and duplicate wildcard topics
// produced by different templates (e.g. "{name}" and "{id}" at the same
// position) collapse into one subscription. Only identical strings
// collapse: a static topic that another "+" topic also covers is still
// returned as its own subscription.
func PlanSubscriptions(templateTopics []string) []string {
	seen := make(map[string]struct{}, len(templateTopics))
	out := make([]string, 0, len(templateTopics))

	for _, topic := range templateTopics {
		wildcard := wildcardize(topic)
		if _, ok := seen[wildcard]; ok {
			continue
		}
		seen[wildcard] = struct{}{}
		out = append(out, wildcard)
	}
	return out
}

func wildcardize(topic string) string {
	segments := strings.Split(topic, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = "+"
		}
	}
	return strings.Join(segments, "/")
}
