// Command qubo-explicit samples the hand-written QUBO of the reference vertex-to-terminal
// instance and checks the best sample against its known ground state.
package main

import (
	"github.com/lanl/qanneal/internal/app"
	"github.com/lanl/qanneal/internal/appshell"
)

func main() {
	appshell.Main(app.RunExplicit)
}
