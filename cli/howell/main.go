package main

import (
	"os"

	howellcmder "github.com/ryanlack616/howell-brain/cmd/howell"
)

func main() {
	cmd := howellcmder.NewHowellCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
