package utils

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"dappbridge/internal/constants"
)

// NormalizeServerURL trims trailing slash and determines if TLS verification should be skipped
func NormalizeServerURL(serverURL string) (string, bool) {
	serverURL = strings.TrimSuffix(serverURL, "/")
	useHTTPS := strings.HasPrefix(serverURL, "https://")
	skipTLSVerify := useHTTPS && (strings.Contains(serverURL, "localhost") ||
		strings.Contains(serverURL, "127.0.0.1"))
	return serverURL, skipTLSVerify
}

// GetScheme determines the scheme (http/https) from the request
func GetScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme == "https" {
		return scheme
	}
	return "http"
}

func IsStandardPort(scheme, port string) bool {
	switch {
	case (scheme == "http" || scheme == "ws") && port == "80":
		return true
	case (scheme == "https" || scheme == "wss") && port == "443":
		return true
	}
	return false
}

// ConstructURL builds a URL string and removes standard web ports if present
func ConstructURL(scheme, host, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	hostname, port, err := net.SplitHostPort(host)
	if err != nil {
		hostname, port = host, ""
	}

	u := url.URL{Scheme: scheme, Host: hostname, Path: path}
	if port != "" && !IsStandardPort(scheme, port) {
		u.Host = net.JoinHostPort(hostname, port)
	}
	return u.String()
}

// ConstructWSURL builds the URL a surface connects to for sessionID.
func ConstructWSURL(serverURL, sessionID, token string) string {
	wsURL := serverURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	case !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://"):
		wsURL = "ws://" + wsURL
	}

	wsURL = strings.TrimSuffix(wsURL, "/") + constants.EndpointWebSocket + url.PathEscape(sessionID)
	return wsURL + "?token=" + url.QueryEscape(token)
}
