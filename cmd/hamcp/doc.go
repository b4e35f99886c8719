// Command hamcp exposes a Home Assistant instance to AI agents as a Model
// Context Protocol tool server.
//
// It runs inside the Home Assistant add-on container, talks to the core and
// supervisor APIs with the injected SUPERVISOR_TOKEN, and serves a fixed
// catalog of tools over stdio (optionally also over HTTP).
//
// Install:
//
//	go install github.com/DEADSEC-SECURITY/claude-home-assistant/cmd/hamcp@latest
//
// Usage:
//
//	hamcp serve --log-level info
package main
