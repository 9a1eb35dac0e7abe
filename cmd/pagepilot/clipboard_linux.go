//go:build linux

package main

import "fmt"

var errNoClipboard = fmt.Errorf("clipboard not available on this platform (Linux without X11)")

func initClipboard() error {
	return errNoClipboard
}

func writeToClipboard(string) error {
	return errNoClipboard
}
