// Package main is the entry point of muxsite, the MUX Editor site server.
//
// muxsite serves the public, login, registration, main menu and admin pages
// and keeps one session per browser in a signed storage scope. The same
// session lifecycle is available from the command line through a local
// profile.
//
// Usage:
//
//	muxsite serve [flags]
//	muxsite session login --username admin
//
// Environment Variables:
//   - MUXSITE_AUTH_SECRET: signing secret of the scope cookie
//   - MUXSITE_SERVER_PORT: HTTP server port (default: 8080)
//   - MUXSITE_STORAGE_DRIVER: memory, file, badger, sqlite or redis
package main

import (
	"os"

	"evalgo.org/muxsite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
