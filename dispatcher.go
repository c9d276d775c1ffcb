package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rgnets/wlanpi-mqtt-bridge/corehttp"
	"github.com/rgnets/wlanpi-mqtt-bridge/messenger"
	"github.com/rgnets/wlanpi-mqtt-bridge/openapi"
	"github.com/rgnets/wlanpi-mqtt-bridge/router"
	"github.com/rgnets/wlanpi-mqtt-bridge/utils"
)

// MonitoredEndpoint is one core API path the Dispatcher polls on a timer
// and republishes under "<local_prefix>/<path>/_current".
type MonitoredEndpoint struct {
	Path   string
	Retain bool
}

// AutoPublisher computes a bridge-internal value (e.g. the host's
// primary IP address) and publishes it to a fixed topic on every poll
// cycle, independent of the core API.
type AutoPublisher struct {
	Topic   string
	Compute func(ctx context.Context) ([]byte, error)
}

// Config configures a Dispatcher.
type Config struct {
	DeviceID       string
	PollInterval   time.Duration
	Monitored      []MonitoredEndpoint
	AutoPublishers []AutoPublisher
}

// Dispatcher is the bridge orchestrator described in this project's
// topic-to-route dispatch engine: it owns the route trie, drives the
// MQTT connection lifecycle, and turns inbound MQTT messages into core
// HTTP calls and response envelopes.
type Dispatcher struct {
	cfg    Config
	mqtt   messenger.MQTT
	core   *corehttp.Client
	logger *slog.Logger

	trie   atomic.Pointer[router.RouteTrie]
	routes atomic.Pointer[[]router.Route]

	subMu         sync.Mutex
	subscriptions map[string]func() error

	ticker *utils.Ticker
}

// New builds a Dispatcher. Neither New nor Start connects: Start registers
// the connect hook, and the caller connects the MQTT client afterwards.
func New(cfg Config, mqtt messenger.MQTT, core *corehttp.Client, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:           cfg,
		mqtt:          mqtt,
		core:          core,
		logger:        logger,
		subscriptions: make(map[string]func() error),
	}
	d.trie.Store(router.NewRouteTrie())
	return d
}

func (d *Dispatcher) statusTopic() string   { return messenger.StatusTopic(d.cfg.DeviceID) }
func (d *Dispatcher) openAPITopic() string  { return messenger.OpenAPITopic(d.cfg.DeviceID) }
func (d *Dispatcher) localPrefix() string   { return "wlan-pi/" + d.cfg.DeviceID }

// Start registers the last-will and the reconnect hook, then starts the
// periodic poll timer and returns. The onConnect sequence (OpenAPI
// re-ingestion, subscription install, status/openapi announce, one poll)
// runs every time the MQTT client reports a connect or reconnect, not
// just once here, so a broker bounce re-synchronizes the bridge instead
// of leaving it connected with stale routes.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.mqtt.SetWill(d.statusTopic(), []byte("Abnormally Disconnected"), true, 1); err != nil {
		return fmt.Errorf("bridge: set last will: %w", err)
	}

	d.mqtt.SetOnConnect(func() {
		if err := d.onConnect(ctx); err != nil {
			d.logger.Error("bridge: connect sequence failed", "error", err)
		}
	})

	d.ticker = utils.NewTicker("bridge-poll", d.cfg.PollInterval, func(time.Time) {
		d.periodicPoll(ctx)
	})
	return nil
}

// onConnect runs the sequence spec.md §4.6 requires every time the
// broker connection is (re)established: refetch the OpenAPI document,
// rebuild the trie off to the side, swap it in atomically, install any
// subscriptions that are new, and announce liveness.
func (d *Dispatcher) onConnect(ctx context.Context) error {
	doc, err := d.core.GetOpenAPIDefinition(ctx)
	if err != nil {
		// Per spec.md §4.6: a failed OpenAPI fetch on connect is not
		// fatal. The dispatcher stays connected with no routes, so every
		// inbound message takes the NoBridgeRouteFound path until a
		// later reconnect retries the fetch.
		d.logger.Error("bridge: fetch openapi definition failed, staying connected without routes", "error", err)
		return nil
	}

	routes := openapi.Ingest(doc, d.cfg.DeviceID)
	trie := router.NewRouteTrie()
	var templateTopics []string
	for _, route := range routes {
		tp, perr := router.ParseTemplate(route.RequestTopic)
		if perr != nil {
			d.logger.Warn("bridge: skipping malformed route template", "topic", route.RequestTopic, "error", perr)
			continue
		}
		trie.Insert(tp, route)
		templateTopics = append(templateTopics, route.RequestTopic)
	}
	d.trie.Store(trie)
	d.routes.Store(&routes)

	d.installSubscriptions(ctx, router.PlanSubscriptions(templateTopics))

	docBytes, err := json.Marshal(doc)
	if err != nil {
		d.logger.Error("bridge: marshal openapi document", "error", err)
	} else if err := d.mqtt.Publish(ctx, d.openAPITopic(), docBytes, true, 1); err != nil {
		d.logger.Error("bridge: publish openapi document", "error", err)
	}

	if err := d.mqtt.Publish(ctx, d.statusTopic(), []byte("Connected"), true, 1); err != nil {
		d.logger.Error("bridge: publish connected status", "error", err)
	}

	d.periodicPoll(ctx)
	return nil
}

// installSubscriptions subscribes to any wildcard topic in wanted that
// isn't already subscribed, and drops ones no longer wanted. It never
// holds subMu while calling into the MQTT client, since Subscribe may
// block on the network.
func (d *Dispatcher) installSubscriptions(ctx context.Context, wanted []string) {
	d.subMu.Lock()
	existing := make(map[string]bool, len(d.subscriptions))
	for topic := range d.subscriptions {
		existing[topic] = true
	}
	d.subMu.Unlock()

	wantedSet := make(map[string]bool, len(wanted))
	for _, topic := range wanted {
		wantedSet[topic] = true
		if existing[topic] {
			continue
		}
		handler := func(msg messenger.Message) {
			// Overlapping subscriptions (".../+/get" and ".../status/get")
			// each deliver the same message; only the subscription planned
			// from the matched route's own template dispatches it.
			if route, _ := d.trie.Load().Lookup(msg.Topic); route != nil {
				if router.PlanSubscriptions([]string{route.RequestTopic})[0] != topic {
					return
				}
			}
			d.onMessage(msg)
		}
		unsubscribe, err := d.mqtt.Subscribe(ctx, topic, 1, handler)
		if err != nil {
			d.logger.Error("bridge: subscribe failed", "topic", topic, "error", err)
			continue
		}
		d.subMu.Lock()
		d.subscriptions[topic] = unsubscribe
		d.subMu.Unlock()
	}

	for topic := range existing {
		if wantedSet[topic] {
			continue
		}
		d.subMu.Lock()
		unsubscribe := d.subscriptions[topic]
		delete(d.subscriptions, topic)
		d.subMu.Unlock()
		if unsubscribe != nil {
			if err := unsubscribe(); err != nil {
				d.logger.Error("bridge: unsubscribe failed", "topic", topic, "error", err)
			}
		}
	}
}

// onMessage implements spec.md §4.6's on_message contract. It is safe to
// call concurrently for different topics; the trie is read via an
// atomic load so it never blocks on the OpenAPI-reload path.
func (d *Dispatcher) onMessage(msg messenger.Message) {
	ctx := context.Background()
	trie := d.trie.Load()

	route, bindings := trie.Lookup(msg.Topic)
	if route == nil {
		d.publishEnvelope(ctx, msg.Topic+"/_response", bridgeErrorEnvelope(
			ErrKindNoBridgeRouteFound, fmt.Sprintf("no route registered for topic %q", msg.Topic)))
		return
	}

	bound := route.Rebind(bindings)
	payload := bytes.TrimSpace(msg.Payload)

	var query map[string]string
	var body []byte

	if len(payload) > 0 {
		if bound.HTTPMethod == router.MethodGet {
			// A GET payload is only ever used to build query parameters, so
			// it must decode as a JSON object; anything else (not JSON, or
			// valid JSON that isn't an object) just means no query
			// parameters, not an error.
			var decoded map[string]any
			if err := json.Unmarshal(payload, &decoded); err == nil {
				query = stringifyQuery(decoded)
			} else {
				d.logger.Debug("bridge: GET payload is not a JSON object, ignoring", "topic", msg.Topic, "error", err)
			}
		} else {
			// Any valid JSON value is an acceptable body — the bridge
			// forwards it opaquely and only rejects payloads that aren't
			// JSON at all.
			if !json.Valid(payload) {
				d.publishEnvelope(ctx, bound.ResponseTopic, bridgeErrorEnvelope(
					ErrKindInvalidPayload, "payload is not valid JSON"))
				return
			}
			body = payload
		}
	}

	resp, err := d.core.Execute(ctx, string(bound.HTTPMethod), bound.HTTPPath, query, body)
	if err != nil {
		d.publishEnvelope(ctx, bound.ResponseTopic, bridgeErrorEnvelope(ErrKindCoreUnreachable, err.Error()))
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.publishEnvelope(ctx, bound.ResponseTopic, successEnvelope(resp.Body, resp.StatusCode, resp.Reason))
	} else {
		d.publishEnvelope(ctx, bound.ResponseTopic, restErrorEnvelope(resp.Body, resp.StatusCode, resp.Reason))
	}
}

func stringifyQuery(decoded map[string]any) map[string]string {
	query := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			query[k] = val
		default:
			b, err := json.Marshal(val)
			if err == nil {
				query[k] = strings.Trim(string(b), `"`)
			}
		}
	}
	return query
}

func (d *Dispatcher) publishEnvelope(ctx context.Context, topic string, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		d.logger.Error("bridge: marshal response envelope", "topic", topic, "error", err)
		return
	}
	if err := d.mqtt.Publish(ctx, topic, b, false, 1); err != nil {
		d.logger.Error("bridge: publish response envelope", "topic", topic, "error", err)
	}
}

// periodicPoll runs one cycle of spec.md §4.6's periodic_poll: GET every
// monitored endpoint, publish its envelope, then run the auto-published
// bridge-internal topics. A single endpoint failing is logged and does
// not abort the cycle.
func (d *Dispatcher) periodicPoll(ctx context.Context) {
	for _, ep := range d.cfg.Monitored {
		topic := d.localPrefix() + strings.TrimSuffix(ep.Path, "/") + "/_current"

		resp, err := d.core.Execute(ctx, http.MethodGet, ep.Path, nil, nil)
		if err != nil {
			d.logger.Error("bridge: periodic poll failed", "path", ep.Path, "error", err)
			d.publishEnvelopeRetained(ctx, topic, bridgeErrorEnvelope(ErrKindCoreUnreachable, err.Error()), ep.Retain)
			continue
		}

		env := successEnvelope(resp.Body, resp.StatusCode, resp.Reason)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			env = restErrorEnvelope(resp.Body, resp.StatusCode, resp.Reason)
		}
		d.publishEnvelopeRetained(ctx, topic, env, ep.Retain)
	}

	for _, ap := range d.cfg.AutoPublishers {
		payload, err := ap.Compute(ctx)
		if err != nil {
			d.logger.Error("bridge: auto-publish compute failed", "topic", ap.Topic, "error", err)
			continue
		}
		if err := d.mqtt.Publish(ctx, ap.Topic, payload, true, 1); err != nil {
			d.logger.Error("bridge: auto-publish failed", "topic", ap.Topic, "error", err)
		}
	}
}

func (d *Dispatcher) publishEnvelopeRetained(ctx context.Context, topic string, env Envelope, retain bool) {
	b, err := json.Marshal(env)
	if err != nil {
		d.logger.Error("bridge: marshal poll envelope", "topic", topic, "error", err)
		return
	}
	if err := d.mqtt.Publish(ctx, topic, b, retain, 1); err != nil {
		d.logger.Error("bridge: publish poll envelope", "topic", topic, "error", err)
	}
}

// Stop cancels the poll timer, publishes the "Disconnected" status, and
// then disconnects from the broker.
func (d *Dispatcher) Stop(ctx context.Context) {
	if d.ticker != nil {
		d.ticker.Stop()
	}
	if err := d.mqtt.Publish(ctx, d.statusTopic(), []byte("Disconnected"), true, 1); err != nil {
		d.logger.Error("bridge: publish disconnected status", "error", err)
	}
	if err := d.mqtt.Disconnect(ctx); err != nil {
		d.logger.Error("bridge: disconnect", "error", err)
	}
}

// Routes returns the routes registered by the most recent OpenAPI
// ingestion, used by the debug HTTP surface that the "routes" CLI
// command reads.
func (d *Dispatcher) Routes() []router.Route {
	if r := d.routes.Load(); r != nil {
		return *r
	}
	return nil
}
