/*
Package claudehomeassistant documents the Home Assistant MCP module.

This module is CLI-first and ships the hamcp command:

	go install github.com/DEADSEC-SECURITY/claude-home-assistant/cmd/hamcp@latest

Most implementation packages in this repository are internal and are not a
stable public Go API.
*/
package claudehomeassistant
