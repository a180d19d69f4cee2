package main

import "github.com/amirkhaki/watson/cmd/watson/cmd"

func main() {
	cmd.Execute()
}
