package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mercator-hq/marquee/pkg/proxy/types"
)

// WriteJSONResponse writes data as JSON with statusCode.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes the error envelope with the status its type
// implies. Error responses are never cacheable by clients.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	w.Header().Set("Cache-Control", "no-store")
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}
