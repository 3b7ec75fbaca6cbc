package main

import (
	"fmt"
	"os"

	"github.com/fieldtriplabs/pvachat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pvachat:", err)
		os.Exit(1)
	}
}
