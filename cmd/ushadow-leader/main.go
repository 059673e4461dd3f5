package main

import "github.com/ushadow-io/ushadow/cmd/ushadow-leader/cmd"

func main() {
	cmd.Execute()
}
