package main

import (
	"os"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
