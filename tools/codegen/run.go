// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/tools/codegen/internal"
)

func main() {
	manifest := flag.String("manifest", "", "tool manifest to read (empty uses the standard resolution order)")
	out := flag.String("out", "handlers_gen.go", "Go file to write")
	pkg := flag.String("pkg", "main", "package name for the generated file")
	flag.Parse()

	err := codegen.Generate(codegen.Options{
		ManifestPath: *manifest,
		OutputPath:   *out,
		Package:      *pkg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating handlers: %v\n", err)
		os.Exit(1)
	}
}
