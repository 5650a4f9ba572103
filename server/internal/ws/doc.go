// Package ws implements the live dashboard stream mounted at /ws/stream.
//
// Hub keeps the set of connected clients and broadcasts the analytics summary
// on a configurable interval (stream.interval, default 5s). A client gets the
// current summary immediately on connect.
//
// Message format sent to clients:
//
//	{
//	  "event": "analytics",
//	  "data":  { /* same schema as GET /analytics */ }
//	}
//
// Clients whose send buffer fills up are disconnected. Run closes every
// connection when its context is cancelled.
package ws
