package main

import (
	"os"
	"strings"

	"LiveBoard/internal/commands"
	boardnet "LiveBoard/internal/net"
)

func main() {
	// opening a share link starts the client directly
	if len(os.Args) == 2 && strings.HasPrefix(os.Args[1], boardnet.LinkScheme) {
		os.Args = []string{os.Args[0], "join", os.Args[1]}
	}
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
