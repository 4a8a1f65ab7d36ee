package main

import "firerag/internal/cli"

func main() {
	cli.Execute()
}
