package main

import (
	"fmt"
	"log"
	"os"
)

// A tiny ahead-of-execution JIT for the eight-instruction tape
// language: Parse -> Optimize -> Generate -> Map Executable ->
// Allocate Tape -> (Profile) -> Execute.

const versionString = "bf 1.0.0"

func main() {
	for _, a := range os.Args[1:] {
		switch a {
		case "--version":
			fmt.Println(versionString)
			return
		case "-h", "--help":
			PrintUsage(os.Stdout)
			os.Exit(0)
		}
	}

	opts, err := ParseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "usage: bf [flags] <program-file>\n")
		os.Exit(2)
	}

	result, err := Run(opts)
	if err != nil {
		log.Fatalf("bf: %v", err)
	}
	os.Exit(int(result))
}
