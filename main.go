package main

import "github.com/hojonavi/hojokin-harvester/cmd"

func main() {
	cmd.Execute()
}
