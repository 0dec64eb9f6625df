package main

import "github.com/upb/tracking-bridge/cmd/tracking-bridge/cmd"

func main() {
	cmd.Execute()
}
