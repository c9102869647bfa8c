// Package httpx shapes stockcore's HTTP responses: JSON bodies for data,
// RFC7807 problem documents for failures.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// problemTypeBase prefixes every problem type URI so clients can switch on a
// stable identifier instead of matching title text.
const problemTypeBase = "https://stockcore.dev/problems/"

// maxBodyBytes caps decoded request bodies. Stock operations carry small
// JSON documents; anything larger is rejected as malformed.
const maxBodyBytes = 1 << 20

// ProblemDetail is the RFC7807 document sent for every failure.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response. The type URI is derived
// from the title: "Insufficient Available Stock" yields
// https://stockcore.dev/problems/insufficient-available-stock.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Type:   problemTypeBase + slugify(title),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func slugify(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

// DecodeJSON decodes the request body into target. Bodies over maxBodyBytes
// are cut off, which surfaces as a decode error in the handler.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}
