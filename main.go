package main

import "github.com/creativeprojects/mailstate/cmd"

// set by the linker
var (
	version = "0.1.0-dev"
	commit  = ""
	date    = ""
	builtBy = ""
)

func main() {
	cmd.SetVersion(version, commit, date, builtBy)
	cmd.Execute()
}
