// Package influxdb provides time-series telemetry storage for NEXA Core.
//
// Numeric device state fields relayed over MQTT are written here as
// they arrive, giving dashboards and history queries a source that
// never touches the SQLite hot path. Rule execution outcomes are also
// recorded so automation behaviour can be charted over time.
//
// Writes are non-blocking and batched by the underlying client; a
// telemetry outage degrades to dropped points, never to a blocked
// state relay. Errors from the async pipeline surface through the
// SetOnError callback.
//
// The integration is optional: when disabled in configuration, Connect
// returns ErrDisabled and callers run without telemetry.
package influxdb
