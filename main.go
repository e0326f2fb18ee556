package main

import "github.com/notargets/parbdy/cmd"

func main() {
	cmd.Execute()
}
