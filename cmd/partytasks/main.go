package main

import "github.com/mcoot/partytasks/internal/cli"

func main() {
	cli.Execute()
}
