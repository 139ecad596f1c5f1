package main

import "customfields/internal/cli"

func main() {
	cli.Execute()
}
