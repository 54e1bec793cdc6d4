// Package httpx holds small helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
)

const maxFormBytes = 1 << 20

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message} with status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// FormValues returns request fields from a JSON object body or a URL-encoded form.
// Non-string JSON scalars are formatted with %v.
func FormValues(r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxFormBytes))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	values := make(url.Values, len(raw))
	for key, v := range raw {
		switch typed := v.(type) {
		case nil:
		case string:
			values.Set(key, typed)
		case bool:
			if typed {
				values.Set(key, "yes")
			} else {
				values.Set(key, "no")
			}
		default:
			values.Set(key, fmt.Sprintf("%v", typed))
		}
	}
	return values, nil
}
