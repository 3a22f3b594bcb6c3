package main

import "l10nkit/internal/cli"

func main() {
	cli.Execute()
}
