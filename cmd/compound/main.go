// Command compound provisions and drives compound workers.
package main

import (
	"os"

	"github.com/Iron-Ham/compound/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
