// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hamed0406/uptimeworker/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✖", "configuration invalid:", err)
		os.Exit(1)
	}
	report(os.Stdout, os.Stderr, cfg)
	fmt.Println("✔", "preflight passed")
}

func report(out, errOut io.Writer, cfg *config.Config) {
	warn := func(msg string) { fmt.Fprintln(errOut, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(out, "✔", msg) }

	ok("ENV=" + cfg.Env)
	ok("STORE=" + cfg.Store)
	switch cfg.Store {
	case config.StoreMemory:
		warn("STORE=memory: checks are not persisted and the worker starts with none.")
	case config.StorePostgres:
		ok("DATABASE_URL present")
	default:
		ok("DATA_DIR=" + cfg.DataDir)
	}
	ok("LOGS_DIR=" + cfg.LogsDir)

	if cfg.APIAddr == "" {
		warn("API_ADDR is empty; the status API is disabled.")
	} else {
		ok("API_ADDR=" + cfg.APIAddr)
	}

	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL=0 disables the check loop.")
	} else {
		ok("CHECK_INTERVAL=" + cfg.CheckInterval.String())
	}
	if cfg.RotationInterval == 0 {
		warn("ROTATION_INTERVAL=0 disables log rotation.")
	} else {
		ok("ROTATION_INTERVAL=" + cfg.RotationInterval.String())
	}

	channels := cfg.Channels()
	if len(channels) == 0 {
		warn("no alert channel configured; alerts will only be logged.")
	} else {
		ok("alert channels: " + strings.Join(channels, ","))
	}
}
