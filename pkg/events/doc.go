/*
Package events provides an in-memory event broker for a node's consensus
engine lifecycle.

The events package implements a lightweight pub/sub bus for broadcasting
role transitions, commit notifications, and snapshot activity to
interested subscribers (operator tooling, metrics exporters, the
`curpd serve` event logger), without coupling the consensus engine
itself to any particular observer.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Non-blocking publish                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  role.changed, leader.elected, term.advanced│          │
	│  │  log.committed, snapshot.taken              │          │
	│  │  snapshot.installed, specpool.recovered     │          │
	│  └──────────────────────────────────────────────┘          │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

# Delivery semantics

Publish never blocks the publisher beyond a single channel send into the
broker's own 100-deep buffer; a slow or absent subscriber cannot stall
the consensus engine. Each subscriber gets its own 50-deep buffered
channel, and a full subscriber buffer drops the event rather than
blocking the broadcast loop — events are best-effort, not a durable log.
Durable state lives in pkg/replog and pkg/storage; this package exists
purely to notify observers as that state changes.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{Type: events.EventLeaderElected, Message: "node-2 elected in term 7"})
*/
package events
