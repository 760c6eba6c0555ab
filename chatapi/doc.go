// Package chatapi is the HTTP transport client for a Stack-Exchange-style
// chat service. The service exposes no push or streaming primitive, so
// everything is plain request/response:
//
//   - GET /rooms/{id} returns the room page; the anti-forgery token ("fkey")
//     is scraped out of the HTML and cached for the life of the process.
//   - POST /chats/{id}/events with mode=messages returns the N most recent
//     messages as JSON.
//   - POST /chats/{id}/messages/new posts a message; 404 means the room is
//     gone or posting is forbidden, 409 means rate limited with a
//     human-readable wait time in the body.
//   - POST /chats/leave/{id} leaves the room.
//
// Every request goes through an executor that retries transient transport
// failures and honors the service's rate-limit signals (409 with a
// server-suggested wait, 429 with a fixed pause). Rate-limit retries never
// count against the attempt budget; see RetryPolicy and RetryState.
package chatapi
