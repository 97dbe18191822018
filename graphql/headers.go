package graphql

import (
	"net/http"

	"github.com/pkg/errors"
)

// Header names sent with every request.
const (
	HeaderAPIKey        = "x-api-key"
	HeaderClientName    = "apollographql-client-name"
	HeaderClientVersion = "apollographql-client-version"
)

// ErrMissingAPIKey is returned by DefaultHeaders for an empty key.
var ErrMissingAPIKey = errors.New("api key is required")

// HeaderFunc builds the headers for a request from the API key.
type HeaderFunc func(apiKey string) (http.Header, error)

// DefaultHeaders returns a HeaderFunc that identifies the client by name and version.
func DefaultHeaders(clientName, clientVersion string) HeaderFunc {
	return func(apiKey string) (http.Header, error) {
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}

		h := make(http.Header)
		h.Set("Content-Type", "application/json")
		h.Set(HeaderAPIKey, apiKey)
		h.Set(HeaderClientName, clientName)
		h.Set(HeaderClientVersion, clientVersion)
		return h, nil
	}
}
