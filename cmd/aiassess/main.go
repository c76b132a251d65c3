// cmd/aiassess/main.go
package main

import (
	cmd "github.com/spar65/aiassessmenttool/internal/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main starts the aiassess CLI by delegating to the cobra root command.
func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
