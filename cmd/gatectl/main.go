// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command gatectl inspects and invalidates profile gate state from a shell.
//
// It talks to the same Redis and PostgreSQL as the API and reads the same
// environment variables (REDIS_URL, DATABASE_URL).
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
