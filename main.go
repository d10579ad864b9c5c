package main

import "github.com/timvw/buildtail/cmd"

func main() {
	cmd.Execute()
}
