// Package session orchestrates the lifecycle of every device session in
// the gateway.
//
// A device is a stored messaging account; a session is its live link to a
// provider. The Service owns the mapping between the two: it creates
// sessions on demand, drives each one's event loop, persists lifecycle
// transitions, schedules reconnects, and fans inbound messages out to the
// webhook pipeline.
//
// # Lifecycle
//
// A device moves through five states:
//
//	disconnected -> initializing -> qr_ready -> connected
//	                            \-> auth_failure
//
// Create blocks until the provider reports ready or the attempt fails.
// While it waits, QR codes surface through the store and the event bus so
// an operator can pair the account. An attempt is bounded by InitTimeout;
// a device that fails MaxInitRetries attempts in a row is refused until a
// successful initialization clears the count.
//
// auth_failure is terminal. The service never reconnects a device whose
// credentials were rejected; only an explicit restart (which re-pairs) or
// delete leaves the state.
//
// # Reconnects
//
// When a connected session drops without being asked to, the service waits
// ReconnectDelay and recreates it, retrying on the same delay until the
// session is back, the retry budget trips, or the device is deleted.
// Deliberate teardowns (Disconnect, Restart, Delete, shutdown) never
// trigger a reconnect.
//
// # Wiring
//
// The service sits between the store, a provider factory, and the inbound
// pipeline:
//
//	svc := session.NewService(st, factory, stateDir, opts)
//	svc.SetInboundHandler(dispatcher)
//
//	device, err := svc.Create(ctx, "office", "Front Desk")
//	...
//	msg, err := svc.Send(ctx, "office", "5511999990001@c.us", "hello")
//
// Inbound messages are delivered synchronously per device, so one device's
// messages keep their arrival order while devices stay independent of each
// other.
package session
