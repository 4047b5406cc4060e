package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
)

const maxAuditBody = 2000

var sensitiveKeys = []string{"password", "secret", "token", "bind_password"}

// AuditLog writes every mutating API call to system_logs. Entity-level
// before/after snapshots are kept separately by the services.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
			body = maskSensitiveFields(raw)
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)
		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		extra := map[string]interface{}{
			"method":     method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString("request_id"),
			"body":       body,
		}
		msg := formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status)
		if status >= http.StatusBadRequest {
			services.LogWarning(module, action, msg, uid, c.ClientIP(), c.Request.UserAgent(), extra)
			return
		}
		services.LogInfo(module, action, msg, uid, c.ClientIP(), c.Request.UserAgent(), extra)
	}
}

// parseRouteInfo turns a route pattern into a module and action, e.g.
// "/api/purchase-orders/:id/submit" POST -> "Purchase Orders", "Submit".
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	parts := strings.Split(path, "/")
	module = titleWords(parts[0])
	if module == "" {
		module = "Unknown"
	}

	// a verb after the id names the action: /cases/:id/transition
	if n := len(parts); n >= 3 && strings.HasPrefix(parts[n-2], ":") && !strings.HasPrefix(parts[n-1], ":") {
		return module, titleWords(parts[n-1])
	}

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut, http.MethodPatch:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatAuditMessage(username, method, path string, status int) string {
	outcome := "OK"
	if status >= http.StatusBadRequest {
		outcome = "Failed"
	}
	if username == "" {
		username = "anonymous"
	}
	return "[Audit] " + username + " " + method + " " + path + " -> " + outcome
}

// maskSensitiveFields re-encodes a JSON body with secret values blanked.
// Non-JSON bodies are dropped.
func maskSensitiveFields(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "[non-json body]"
	}
	masked, err := json.Marshal(maskValue(v))
	if err != nil {
		return ""
	}
	return string(masked)
}

func maskValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			if isSensitive(k) {
				t[k] = "***"
				continue
			}
			t[k] = maskValue(inner)
		}
	case []interface{}:
		for i := range t {
			t[i] = maskValue(t[i])
		}
	}
	return v
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
