package main

import "quote-alerts/internal/cli"

func main() {
	cli.Execute()
}
