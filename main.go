package main

import "github.com/strrl/aurora-cli/cmd/aurora/commands"

func main() {
	commands.Execute()
}
