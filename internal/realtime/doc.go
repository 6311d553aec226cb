// Package realtime provides the WebSocket fan-out layer for NEXA Core.
//
// Connected clients subscribe to named channels and receive events
// published to those channels. Two channel families exist:
//
//	home:{homeID}     home-wide events (alerts, automation results)
//	device:{deviceID} per-device state changes
//
// Events are fire-and-forget: publishing never blocks on a slow or
// disconnected client, and a client with a full outbound buffer simply
// misses the message. Durable state lives in SQLite; the hub only
// pushes notifications about changes that have already been persisted.
//
// # Architecture
//
//	┌─────────────┐     Publish      ┌─────────────────────────┐
//	│  services    │ ───────────────> │ Hub                     │
//	│  (automation,│                  │  channels: name -> set  │
//	│   alert, ...) │                  │  clients:  conn set     │
//	└─────────────┘                  └───────────┬─────────────┘
//	                                             │ trySend (non-blocking)
//	                                   ┌─────────▼─────────┐
//	                                   │ Client read/write │
//	                                   │ pumps (gorilla)   │
//	                                   └───────────────────┘
//
// Subscribe and Unsubscribe are idempotent. Disconnecting a client
// removes all of its subscriptions, so a later publish to the same
// channels delivers to the remaining subscribers only.
package realtime
