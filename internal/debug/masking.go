package debug

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SensitiveKeys contains keys that trigger automatic masking when detected
var SensitiveKeys = []string{
	"password", "secret", "token",
	"api_key", "apikey", "api-key", "site_key", "sitekey",
	"authorization", "auth", "credential",
	"x-civi-key",
}

// MaskToken masks a token, showing only the last 4 characters.
// Tokens of 8 characters or fewer are fully masked.
func MaskToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

// MaskURL removes credentials from a URL: userinfo passwords and sensitive query parameters
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if parsed.User != nil {
		if _, hasPass := parsed.User.Password(); hasPass {
			parsed.User = url.UserPassword(parsed.User.Username(), "***")
		}
	}

	query := parsed.Query()
	modified := false
	for key := range query {
		if IsSensitiveKey(key) {
			query.Set(key, "***")
			modified = true
		}
	}
	if modified {
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// MaskHeader masks sensitive HTTP header values.
// Bearer-style headers (Authorization, X-Civi-Auth) keep the scheme and mask the credential.
func MaskHeader(name, value string) string {
	if len(value) == 0 {
		return ""
	}

	nameLower := strings.ToLower(name)
	if nameLower == "authorization" || nameLower == "x-civi-auth" {
		parts := strings.SplitN(value, " ", 2)
		if len(parts) == 2 {
			return parts[0] + " " + MaskToken(parts[1])
		}
		return MaskToken(value)
	}

	if IsSensitiveKey(nameLower) {
		return MaskToken(value)
	}

	return value
}

// MaskHeaders renders headers as "Name: value" pairs, sorted by name, with secrets masked
func MaskHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		for _, value := range headers[name] {
			parts = append(parts, fmt.Sprintf("%s: %s", name, MaskHeader(name, value)))
		}
	}
	return strings.Join(parts, ", ")
}

// IsSensitiveKey checks if a key name indicates sensitive data
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range SensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}
