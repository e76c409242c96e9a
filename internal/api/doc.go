// Package api provides the HTTP REST API for the tracker hub.
//
// It exposes account registration and login, device registry reads and
// writes, location history, and the command endpoints that translate HTTP
// requests into bus publishes (tracking, audio listening, restart,
// firmware). The relay websocket is mounted at /ws without bearer auth,
// since trackers authenticate at the transport layer, not per request.
//
// Every response is wrapped in a {success, data, error} envelope. The
// server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
