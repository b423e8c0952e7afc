package net

import (
	"net"

	"LiveBoard/internal/logging"
)

// GetOutgoingIP finds the preferred local IP address for the share link.
func GetOutgoingIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// no route to the internet, fall back to the local interfaces
		ip := firstIPv4()
		if ip.IsLoopback() {
			logging.Warn().Msg("no suitable local IP found, share link only works on this machine")
		}
		return ip.String()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
