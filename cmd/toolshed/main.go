package main

import "github.com/kseleznov/toolshed/cmd/toolshed/cmd"

func main() {
	cmd.Execute()
}
