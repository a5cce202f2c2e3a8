// Command pagetree manages a tree of content pages from the command line.
package main

import "github.com/mesh-intelligence/pagetree/internal/cli"

func main() {
	cli.Execute()
}
