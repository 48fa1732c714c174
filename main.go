package main

import "sneaker-arb-alerts/internal/cli"

func main() {
	cli.Execute()
}
