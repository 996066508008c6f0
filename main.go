// main.go
package main

import "github.com/jrkim3888/airplane-ticket-price-tracker/cli"

func main() {
	cli.Execute()
}
