package main

import (
	"fmt"
	"os"

	"infergate/internal/gatectl"
)

func main() {
	if err := gatectl.BuildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
