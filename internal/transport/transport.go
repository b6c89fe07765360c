// Package transport issues HTTP-style requests against the remote feed API
// and delivers responses through completion callbacks.
package transport

import "context"

// Param is one ordered key-value request parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Order is preserved on the wire.
type Params []Param

// Get returns the value for key, or empty string if absent.
func (p Params) Get(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Callback receives the completion of an issued request. A status of zero
// means the request got no response (connection failure); otherwise status
// is the HTTP status code and body the raw response body.
type Callback func(status int, body []byte)

// Transport issues a request and delivers its completion asynchronously.
// Do returns an error only when the request could not be issued at all;
// once Do returns nil the callback is guaranteed to fire exactly once,
// possibly on another goroutine.
type Transport interface {
	Do(ctx context.Context, method, endpoint string, params Params, cb Callback) error
}
