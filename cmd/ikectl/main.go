// ikectl inspects the goike transition table and runs loopback negotiations.
package main

import "github.com/dantte-lp/goike/cmd/ikectl/commands"

func main() {
	commands.Execute()
}
