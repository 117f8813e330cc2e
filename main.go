package main

import "github.com/agentic-research/ilfs/cmd"

func main() {
	cmd.Execute()
}
