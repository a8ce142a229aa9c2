/*
Package event provides a type-safe, pub/sub event system for the wagate server.

The event system enables decoupled communication between components: the
session orchestrator and webhook pipeline emit events, and consumers such as
the SSE stream react to them without direct dependencies.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve type information. It provides
both synchronous and asynchronous event publishing patterns.

# Event Types

Device Events:
  - device.created: Device registered
  - device.updated: Device config modified
  - device.deleted: Device removed
  - device.state: Lifecycle transition (initializing, qr_ready, connected, ...)
  - device.qr: New pairing code available

Message Events:
  - message.received: Inbound message recorded
  - message.sent: Outbound message sent

Webhook Events:
  - webhook.delivered: Webhook POST completed (any status < 600)
  - webhook.failed: Webhook POST failed at the transport level

# Basic Usage

Publishing events:

	// Asynchronous publishing (non-blocking)
	event.Publish(event.Event{
		Type: event.DeviceQR,
		Data: event.DeviceQRData{DeviceID: id, Code: code},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type: event.DeviceState,
		Data: event.DeviceStateData{DeviceID: id, Status: status},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.DeviceState, func(e event.Event) {
		data := e.Data.(event.DeviceStateData)
		log.Info().Str("device", data.DeviceID).Msg("state changed")
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug().Str("type", string(e.Type)).Msg("event")
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the publisher's
goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

Example of a safe subscriber:

	event.SubscribeAll(func(e event.Event) {
	    select {
	    case eventChan <- e:
	    default:
	        log.Warn().Str("type", string(e.Type)).Msg("event dropped: channel full")
	    }
	})

# Custom Event Bus

For testing or isolation, you can create custom bus instances:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.DeviceCreated, handler)
	bus.PublishSync(event.Event{Type: event.DeviceCreated, Data: data})

# Testing

The package provides utilities for testing:

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing operations are protected by
internal synchronization.

# Performance Considerations

  - Asynchronous publishing (Publish) creates a goroutine per subscriber per event
  - Synchronous publishing (PublishSync) calls all subscribers in the current goroutine
  - Use PublishSync for critical events where ordering matters
  - Use Publish for fire-and-forget notifications

# Integration with Watermill

The package uses watermill's gochannel internally, providing access to the
underlying pubsub infrastructure for advanced use cases:

	pubsub := event.PubSub()
	// Use watermill features like middleware, routing, etc.

This allows future migration to distributed message brokers if needed while
maintaining the current API.
*/
package event
