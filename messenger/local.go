package messenger

import (
	"context"
	"strings"
	"sync"
)

// Local is an in-process implementation of MQTT. It is used by the test
// suite (the bridge command itself always connects through Paho), and
// applies the same single-level (+) and multi-level (#) wildcard matching
// a real broker applies when routing a Publish to subscribed handlers.
type Local struct {
	mu        sync.Mutex
	root      *localNode
	will      *Message
	nextSub   int
	onConnect func()
}

type localNode struct {
	children map[string]*localNode
	subs     []*localSub
}

type localSub struct {
	id      int
	handler func(Message)
}

func newLocalNode() *localNode {
	return &localNode{children: make(map[string]*localNode)}
}

// NewLocal returns a ready-to-use in-process transport.
func NewLocal() *Local {
	return &Local{root: newLocalNode()}
}

// Publish delivers to matching subscribers. Handlers run after l.mu is
// released so a handler that calls Publish/Subscribe back on this same
// Local (as dispatcher.go's onMessage does when it replies on the same
// in-process transport) never re-enters the non-reentrant mutex.
func (l *Local) Publish(_ context.Context, topic string, payload []byte, retain bool, qos byte) error {
	msg := Message{Topic: topic, Payload: payload, Retain: retain, QoS: qos}

	l.mu.Lock()
	handlers := gather(l.root, strings.Split(topic, "/"))
	l.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// gather walks segments against n per MQTT wildcard rules ("+" matches
// exactly one level, "#" matches the remainder including zero levels)
// and returns every matching subscription's handler. Must be called
// with l.mu held.
func gather(n *localNode, segments []string) []func(Message) {
	var handlers []func(Message)

	if hash, ok := n.children["#"]; ok {
		handlers = append(handlers, handlersOf(hash)...)
	}

	if len(segments) == 0 {
		handlers = append(handlers, handlersOf(n)...)
		return handlers
	}

	head, rest := segments[0], segments[1:]
	if child, ok := n.children[head]; ok {
		handlers = append(handlers, gather(child, rest)...)
	}
	if child, ok := n.children["+"]; ok {
		handlers = append(handlers, gather(child, rest)...)
	}
	return handlers
}

func handlersOf(n *localNode) []func(Message) {
	out := make([]func(Message), 0, len(n.subs))
	for _, s := range n.subs {
		out = append(out, s.handler)
	}
	return out
}

func (l *Local) Subscribe(_ context.Context, topic string, _ byte, handler func(Message)) (func() error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.root
	for _, seg := range strings.Split(topic, "/") {
		child, ok := n.children[seg]
		if !ok {
			child = newLocalNode()
			n.children[seg] = child
		}
		n = child
	}

	l.nextSub++
	sub := &localSub{id: l.nextSub, handler: handler}
	n.subs = append(n.subs, sub)

	unsubscribe := func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range n.subs {
			if s.id == sub.id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				break
			}
		}
		return nil
	}
	return unsubscribe, nil
}

func (l *Local) SetWill(topic string, payload []byte, retain bool, qos byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := Message{Topic: topic, Payload: payload, Retain: retain, QoS: qos}
	l.will = &msg
	return nil
}

// Will returns the last registered last-will message, or nil. It exists
// for tests that assert the bridge wires up its LWT before connecting.
func (l *Local) Will() *Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.will
}

// SetOnConnect registers the callback to invoke on every TriggerConnect.
func (l *Local) SetOnConnect(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onConnect = fn
}

// TriggerConnect simulates a broker connect or reconnect. Local has no
// real network to drive this event, so tests call it directly to
// exercise the same reconnect sequence a real broker bounce would.
func (l *Local) TriggerConnect() {
	l.mu.Lock()
	fn := l.onConnect
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Disconnect is a no-op; Local has no underlying connection to close.
func (l *Local) Disconnect(_ context.Context) error {
	return nil
}
