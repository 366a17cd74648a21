package main

import "github.com/mcoot/ultratic/internal/cli"

func main() {
	cli.Execute()
}
