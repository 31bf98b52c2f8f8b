package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/voluzi/gridpilot/cmd/gridpilot/cmd"
)

func main() {
	cmd.Execute()
}
