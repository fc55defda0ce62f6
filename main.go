package main

import "github.com/saiinc/lynxguard/cmd"

func main() {
	cmd.Execute()
}
