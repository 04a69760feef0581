// Package ws provides the host push channel.
//
// Every connected client receives broadcasts; there is no per-client
// routing. The hub also doubles as the interactive install Confirmer: a
// confirmation request is broadcast and the first answer wins.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - confirm_response: {id, approved} answer to confirm_install
//   - ext_message: {extension_id, channel, data} delivered to the
//     extension's ipc.on(channel) subscribers
//
// Message Types (Server → Client):
//   - welcome: sent on connect, carries the client id
//   - toast: extension notification
//   - slot_changed: a slot's views changed; re-fetch it
//   - confirm_install / confirm_resolved: install prompt lifecycle
//   - ack: ext_message delivery count
//   - pong, error
//
// Example Usage:
//
//	hub := ws.NewHub(logger).WithPublisher(bridge)
//	router.GET("/stream", hub.HandleConnection)
//	notifier.Subscribe(hub.NotifyToast)
package ws
