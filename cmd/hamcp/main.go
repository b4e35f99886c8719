package main

import (
	"os"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/app"
)

func main() {
	os.Exit(app.Main(os.Args))
}
