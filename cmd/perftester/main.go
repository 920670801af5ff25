// Command perftester runs performance tests declared in perftester_*.yaml
// files against the demo subjects registered in this binary.
//
// Projects with their own functions build their own binary: register the
// subjects with perftester.RegisterSubject and call cli.Execute.
package main

import (
	"github.com/nyggus/perftester"
	"github.com/nyggus/perftester/cli"
)

func main() {
	cli.Execute(perftester.DefaultSuite())
}
