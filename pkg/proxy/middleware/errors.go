package middleware

import (
	"encoding/json"
	"net/http"

	"mercator-hq/marquee/pkg/proxy/types"
)

func writeError(w http.ResponseWriter, errResp *types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(errResp.Error.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(errResp)
}
