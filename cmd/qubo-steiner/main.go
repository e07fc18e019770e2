// Command qubo-steiner builds a vertex-to-terminal QUBO from an instance description and
// samples it.
package main

import (
	"github.com/lanl/qanneal/internal/app"
	"github.com/lanl/qanneal/internal/appshell"
)

func main() {
	appshell.Main(app.RunSteiner)
}
