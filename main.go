// Symgraph - symbol relationship graph engine for Go codebases.
//
// Symgraph resolves the symbols of a file, module, or workspace and
// builds a typed graph of their relationships: embedding,
// implementation, composition, invocation, field access, and package
// containment.
package main

import (
	"fmt"
	"os"

	"github.com/ajacobm/symgraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
