package main

import (
	"os"

	"github.com/kpark/examsplit/cmd/examcrop/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
