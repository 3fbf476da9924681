package main

import "witswatch/internal/cli"

func main() {
	cli.Execute()
}
