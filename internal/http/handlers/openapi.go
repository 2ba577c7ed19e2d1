package handlers

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
)

//go:embed openapi.json
var openAPISpec []byte

const docsPage = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Studio API Docs</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="/v1/openapi.json"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`

var (
	openAPIETag = etag(openAPISpec)
	docsETag    = etag([]byte(docsPage))
)

func etag(b []byte) string {
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// serveDocument writes an embedded document, answering 304 when the client
// already holds the same version.
func serveDocument(w http.ResponseWriter, r *http.Request, contentType, tag string, body []byte) {
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	serveDocument(w, r, "application/json; charset=utf-8", openAPIETag, openAPISpec)
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, r *http.Request) {
	serveDocument(w, r, "text/html; charset=utf-8", docsETag, []byte(docsPage))
}
