package main

import (
	"os"

	"github.com/classlens/classlens/cmd/classlens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
