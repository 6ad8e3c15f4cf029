package handler

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// DocsHandler serves the account API contract and a Swagger UI over it.
type DocsHandler struct {
	document []byte
	etag     string
	loadedAt time.Time
}

func NewDocsHandler() *DocsHandler {
	sum := sha256.Sum256(openAPIDocument)
	return &DocsHandler{
		document: openAPIDocument,
		etag:     `"` + hex.EncodeToString(sum[:8]) + `"`,
		loadedAt: time.Now().UTC(),
	}
}

// OpenAPI answers conditional requests with 304 via the document's ETag.
func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	if h == nil || len(h.document) == 0 {
		writeError(w, oops.Code("DOCS_UNAVAILABLE").Wrap(model.ErrInternal))
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("ETag", h.etag)
	http.ServeContent(w, r, "openapi.yaml", h.loadedAt, bytes.NewReader(h.document))
}

func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https://validator.swagger.io")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Account Service API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0;background:#fafafa;}#swagger-ui{max-width:1200px;margin:0 auto;}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
        deepLinking: true,
        displayRequestDuration: true,
        persistAuthorization: true
      });
    </script>
  </body>
</html>`))
}
