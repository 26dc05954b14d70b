package main

import (
	"github.com/deployops/rollout/internal/cli/commands"
)

func main() {
	commands.Execute()
}
