// Package liberrors contains errors returned by the library.
package liberrors

import (
	"fmt"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// ErrClientTerminated is returned when the client is closed.
type ErrClientTerminated struct{}

// Error implements the error interface.
func (e ErrClientTerminated) Error() string {
	return "terminated"
}

// ErrClientInvalidScheme is returned in case of an unsupported URL scheme.
type ErrClientInvalidScheme struct {
	Scheme string
}

// Error implements the error interface.
func (e ErrClientInvalidScheme) Error() string {
	return fmt.Sprintf("unsupported scheme '%s'", e.Scheme)
}

// ErrClientConnection is returned when the control connection
// cannot be established or breaks while a request is pending.
type ErrClientConnection struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientConnection) Unwrap() error {
	return e.Err
}

// ErrClientResponseTimeout is returned when a response is not received in time.
type ErrClientResponseTimeout struct{}

// Error implements the error interface.
func (e ErrClientResponseTimeout) Error() string {
	return "response timed out"
}

// ErrClientProtocol is returned in case of a malformed or unexpected response.
type ErrClientProtocol struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientProtocol) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientProtocol) Unwrap() error {
	return e.Err
}

// ErrClientBadStatusCode is returned in case of a bad status code.
type ErrClientBadStatusCode struct {
	Code    base.StatusCode
	Message string
}

// Error implements the error interface.
func (e ErrClientBadStatusCode) Error() string {
	return fmt.Sprintf("bad status code: %d (%s)", e.Code, e.Message)
}

// ErrClientSessionHeaderInvalid is returned in case of an invalid session header.
type ErrClientSessionHeaderInvalid struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientSessionHeaderInvalid) Error() string {
	return fmt.Sprintf("invalid session header: %v", e.Err)
}

// ErrClientContentTypeMissing is returned in case the Content-Type header is missing.
type ErrClientContentTypeMissing struct{}

// Error implements the error interface.
func (e ErrClientContentTypeMissing) Error() string {
	return "Content-Type header is missing"
}

// ErrClientContentTypeUnsupported is returned in case the Content-Type header is unsupported.
type ErrClientContentTypeUnsupported struct {
	CT base.HeaderValue
}

// Error implements the error interface.
func (e ErrClientContentTypeUnsupported) Error() string {
	return fmt.Sprintf("unsupported Content-Type header '%v'", e.CT)
}

// ErrClientDescriptionInvalid is returned in case of an invalid session description.
type ErrClientDescriptionInvalid struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientDescriptionInvalid) Error() string {
	return fmt.Sprintf("invalid session description: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientDescriptionInvalid) Unwrap() error {
	return e.Err
}

// ErrClientAuth is returned when credentials cannot be computed from a challenge,
// or when the server rejects them.
type ErrClientAuth struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientAuth) Error() string {
	return fmt.Sprintf("authentication error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientAuth) Unwrap() error {
	return e.Err
}

// ErrClientTransportParse is returned when the Transport header of a SETUP response
// does not contain both a source and server ports.
type ErrClientTransportParse struct {
	Value string
	Err   error
}

// Error implements the error interface.
func (e ErrClientTransportParse) Error() string {
	return fmt.Sprintf("unable to parse transport parameters '%s': %v", e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientTransportParse) Unwrap() error {
	return e.Err
}

// ErrClientResolution is returned when the media source host cannot be resolved.
type ErrClientResolution struct {
	Host string
	Err  error
}

// Error implements the error interface.
func (e ErrClientResolution) Error() string {
	return fmt.Sprintf("unable to resolve '%s': %v", e.Host, e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientResolution) Unwrap() error {
	return e.Err
}

// ErrClientKeepalive is published on the fault stream when a keepalive request fails.
type ErrClientKeepalive struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientKeepalive) Error() string {
	return fmt.Sprintf("keepalive failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e ErrClientKeepalive) Unwrap() error {
	return e.Err
}

// ErrClientNoTrack is returned when the session description does not contain a track.
type ErrClientNoTrack struct {
	Type string
}

// Error implements the error interface.
func (e ErrClientNoTrack) Error() string {
	return fmt.Sprintf("the stream does not contain a %s track", e.Type)
}
