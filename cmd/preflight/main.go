// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK"))
	seedFile := strings.TrimSpace(os.Getenv("SEED_FILE"))

	if admin == "" {
		warn("ADMIN_API_KEYS is empty — registration routes run unauthenticated (dev mode).")
	}
	if pub == "" {
		warn("PUBLIC_API_KEYS is empty — read routes run unauthenticated (dev mode).")
	}

	// Sanity-check key lists (comma-separated, no spaces).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("ADDR is empty; the default bind address will be used.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	if db == "" {
		warn("DATABASE_URL empty — in-memory stores will be used; records are lost on restart.")
	} else {
		ok("DATABASE_URL present")
	}

	if slack == "" {
		warn("SLACK_WEBHOOK empty — endpoint-down alerts will only be logged.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	if seedFile == "" {
		warn("SEED_FILE empty — no tenants or endpoints loaded at start; register them over the API.")
	} else if _, err := os.Stat(seedFile); err != nil {
		fail("SEED_FILE set but unreadable: " + err.Error())
	} else {
		ok("SEED_FILE=" + seedFile)
	}

	ok("preflight passed")
}
