// Package websocket provides the WebSocket transport for the backgammon server.
//
// The websocket package implements:
//   - Wire JSON to intent decoding
//   - Delivery of outbound events to addressed connections or to everyone
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// A central Hub owns every connection. Each connection has a read pump that
// decodes frames and hands them to a Dispatcher, and a write pump that drains
// its send buffer. The Hub implements service.Publisher: events are queued on
// one channel and delivered by the Run loop in publish order.
//
// Message Protocol:
//
// Frames are JSON objects in both directions:
//   - Incoming: {"type": "move", "data": {"from": 13, "to": 8, "die": 5}}
//   - Outgoing: {"type": "setGame", "data": {...}}
//
// A closed socket is reported to the dispatcher as a disconnect intent.
// Clients cannot send disconnect themselves.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	svc := service.NewGameService(service.Deps{Publisher: hub, ...}, opts)
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, svc)
//	})
package websocket
