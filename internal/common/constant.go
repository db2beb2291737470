package common

// AuthorizationHeaderName is the gRPC metadata / HTTP header key carrying the
// bearer access token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the authorization scheme prefix expected in front of tokens.
const BearerScheme = "Bearer"

// RequestIDHeaderName is the header echoed back with the per-request id.
const RequestIDHeaderName = "X-Request-ID"
