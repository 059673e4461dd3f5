package main

import "github.com/ushadow-io/ushadow/cmd/ushadow-worker/cmd"

func main() {
	cmd.Execute()
}
