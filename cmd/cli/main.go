package main

import "flichub/cmd/cli/command"

func main() {
	command.Execute()
}
