package main

import (
	"os"

	"github.com/solatis/typekeeper/cmd/typekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
