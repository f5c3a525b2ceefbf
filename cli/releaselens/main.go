package main

import (
	"os"

	releaselenscmder "github.com/releaselens/releaselens/cmd/releaselens"
)

func main() {
	cmd := releaselenscmder.NewReleaseLensCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
