package main

import "github.com/atlasguess/atlasguess/internal/cli"

func main() {
	cli.Execute()
}
