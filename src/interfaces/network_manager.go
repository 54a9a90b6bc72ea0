package interfaces

import (
	"context"
	"net/http"
)

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with potential proxy/retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with query parameters
	// and extra headers. Non-2xx responses are returned as errors.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Open performs a single GET and returns the live response for streaming.
	// The caller closes the body. Non-2xx responses are returned as errors.
	Open(ctx context.Context, url string) (*http.Response, error)
}
