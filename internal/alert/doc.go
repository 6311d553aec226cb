// Package alert provides in-app alerting for NEXA Core.
//
// Alerts are durable notifications scoped to a home: an automation rule
// fired a notification action, a sensor crossed a threshold, a bridge
// went offline. Every alert is persisted to SQLite first, then pushed to
// connected apps over the realtime hub as an "alert:new" event, so a
// client that was offline can still catch up from the REST listing.
//
// The Service implements the automation engine's notification dispatch,
// which is how rule actions of type "notification" surface to users.
package alert
