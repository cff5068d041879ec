// Command scout is the terminal client for the query gateway.
package main

import (
	"os"

	"scoutgw/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
