// Package provider defines the contract between the session orchestrator
// and the messaging backends that hold the actual device connections.
//
// A driver supplies a Factory; every device gets its own Session. A session
// reports pairing progress, lifecycle changes, and inbound traffic through a
// typed event channel, which the orchestrator consumes in a single loop.
//
// # Core Components
//
//   - Factory: builds a Session for one device from a Config
//   - Session: Connect/Teardown lifecycle plus Send and Conversations
//   - Event: sealed set of notifications (QRCodeEvent, ReadyEvent,
//     AuthenticatedEvent, MessageEvent, DisconnectedEvent, AuthFailureEvent,
//     LoadingEvent, StateChangeEvent)
//   - Registry: maps driver names from the configuration to factories
//
// # Session Lifecycle
//
// Connect returns as soon as the attempt is underway; everything after that
// arrives on the event channel:
//
//	sess, err := factory.New(ctx, provider.Config{DeviceID: "office"})
//	if err != nil { ... }
//	if err := sess.Connect(ctx); err != nil { ... }
//	for ev := range sess.Events() {
//	    switch ev := ev.(type) {
//	    case provider.QRCodeEvent:
//	        // show ev.Code to the user
//	    case provider.ReadyEvent:
//	        // ev.Account is the logged-in identity
//	    case provider.MessageEvent:
//	        // ev.Message is an inbound message
//	    }
//	}
//
// Teardown is idempotent and closes the event channel, so the consuming
// loop ends naturally.
//
// # Drivers
//
// The built-in "sim" driver simulates the full pairing flow in-process:
// it emits a QR code, completes the scan after a configurable delay, and
// persists the paired identity under the state directory so later connects
// restore instead of pairing again. With the echo option it replays
// outbound messages as inbound ones, which exercises the whole inbound
// pipeline without a real backend.
//
// Real protocol drivers implement the same Factory and Session interfaces
// and are registered under their own name:
//
//	registry := provider.DefaultRegistry()
//	registry.Register("whatsapp", whatsappFactory)
//	factory, err := registry.Get(cfg.Provider.Driver)
package provider
