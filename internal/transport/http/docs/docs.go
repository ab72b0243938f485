// Package docs embeds the OpenAPI description served at /api/openapi.json.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.json
var openAPI []byte

func ServeOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPI)
}
