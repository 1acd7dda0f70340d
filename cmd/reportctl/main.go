package main

import (
	"fmt"
	"os"

	"github.com/cuongbtq/assessment-reports/cmd/reportctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
