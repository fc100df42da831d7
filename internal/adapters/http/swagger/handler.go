// Package swagger serves the OpenAPI document and a ReDoc page for it.
package swagger

import (
	"context"
	"net/http"
)

// Register attaches the API docs routes to mux.
//
//	GET /api-docs      -> ReDoc HTML
//	GET /openapi.yaml  -> embedded OpenAPI spec
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}

// ReDoc is loaded from its CDN.
const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Blueprints API Docs</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
