package main

import "github.com/navidrome/renderd/cmd"

func main() {
	cmd.Execute()
}
