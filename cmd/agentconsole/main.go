package main

import "AgentConsole/internal/cli"

func main() {
	cli.Execute()
}
