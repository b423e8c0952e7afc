package net

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkScheme prefixes share links handed out by a server.
const LinkScheme = "liveboard://"

// ShareLink builds the link other users open to join a board.
func ShareLink(host string, port int) string {
	return fmt.Sprintf("%s%s:%d", LinkScheme, host, port)
}

// WebSocketURL turns a share link, a host:port pair or an http(s)/ws(s) URL
// into the URL of the board's WebSocket endpoint.
func WebSocketURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("empty board address")
	}
	if strings.HasPrefix(target, LinkScheme) {
		target = "ws://" + strings.TrimPrefix(target, LinkScheme)
	} else if !strings.Contains(target, "://") {
		target = "ws://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse board address %q: %w", target, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("board address %q has no host", target)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
