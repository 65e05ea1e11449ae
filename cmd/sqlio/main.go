// Command sqlio opens a SQLite database with the sqlio extension installed.
//
// Build with the sqlite_vtable tag:
//
//	go build -tags sqlite_vtable ./cmd/sqlio
package main

import (
	"fmt"
	"os"

	"github.com/cyberinferno/go-sqlio/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
