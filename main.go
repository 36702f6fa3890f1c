package main

import "github.com/unfaced/unfaced/cmd"

func main() {
	cmd.Execute()
}
