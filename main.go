package main

import "github.com/RyanBlaney/sonido-sync/cmd"

func main() {
	cmd.Execute()
}
