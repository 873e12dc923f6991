// Package bridge exposes the preferences and workspace stores over HTTP.
//
// The original design delivered requests as custom events and returned
// results by mutating the inbound event. The bridge replaces that with
// explicit JSON request/response messages: every response envelope carries
// a correlation request_id, and change notifications flow out over a
// server-sent-events feed instead of re-dispatched events. The exact
// "Name is not set." and "Value is not set." rejections survive as wire
// messages on the write routes.
package bridge
