package main

import (
	"os"

	"github.com/yuppity/sshd-finder/cmd/sshd-finder/commands"
)

func main() {
	os.Exit(commands.Execute())
}
