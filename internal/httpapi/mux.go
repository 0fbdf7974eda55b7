package httpapi

import (
	"net/http"
)

// NewMux returns a mux with the operational routes registered. Feature
// modules add their own routes to it.
func NewMux(mqtt ConnectionState) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, mqtt)
	return mux
}
