package console

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/org/opsconsole/internal/client"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"errors": []string{msg}})
}

// writeBackendError relays a failed backend call. Backend statuses pass
// through; transport failures become 502.
func writeBackendError(w http.ResponseWriter, err error, fallback string) {
	code := http.StatusBadGateway
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Status
	}
	writeError(w, code, client.Message(err, fallback))
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
