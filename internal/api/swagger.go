package api

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	"narrative-timeline/backend/internal/auth"
)

//go:embed openapi.yaml
var openapiSpec string

// SpecHandler serves the OpenAPI document. The embedded copy keeps an
// {oidcIssuer} placeholder which is replaced with the configured issuer.
func SpecHandler(issuer string) http.HandlerFunc {
	spec := strings.ReplaceAll(openapiSpec, "{oidcIssuer}", issuer)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(spec))
	}
}

// SwaggerHandler serves a Swagger UI page backed by CDN assets. When a client
// id is configured the UI is set up for the authorization code flow with PKCE.
func SwaggerHandler(clientID string) http.HandlerFunc {
	scopes, _ := json.Marshal(auth.AllScopes)
	return func(w http.ResponseWriter, r *http.Request) {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		redirect := scheme + "://" + r.Host + "/docs/oauth2-redirect.html"

		html := strings.NewReplacer(
			"${SPEC_URL}", "/openapi.yaml",
			"${OAUTH2_REDIRECT}", redirect,
			"${CLIENT_ID}", clientID,
			"${SCOPES}", string(scopes),
		).Replace(swaggerHTML)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}
}

// OAuthRedirectHandler serves the OAuth2 redirect page used by Swagger UI.
func OAuthRedirectHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(oauthRedirectHTML))
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Narrative Timelines API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    const ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      oauth2RedirectUrl: "${OAUTH2_REDIRECT}",
    });
    window.ui = ui;

    if ("${CLIENT_ID}" !== "") {
      ui.initOAuth({
        clientId: "${CLIENT_ID}",
        scopes: ${SCOPES},
        usePkceWithAuthorizationCodeGrant: true,
      });
    }
  }
  </script>
</body>
</html>`

const oauthRedirectHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>OAuth2 Redirect</title></head>
<body>
<script>
if (window.opener && window.opener.swaggerUIRedirectCallback) {
  window.opener.swaggerUIRedirectCallback(window.location.href);
}
</script>
</body>
</html>`
