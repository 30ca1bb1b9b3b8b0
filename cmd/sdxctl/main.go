// Package main implements sdxctl, an operator CLI for the topology version store and
// publication pipeline.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(loadContainer).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
