package main

import "github.com/jmehdipour/monozip/cmd"

func main() {
	cmd.Execute()
}
