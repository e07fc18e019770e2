// Command qubo-verify checks the generated QUBO of the reference instance against the
// hand-written table.  It runs offline.
package main

import (
	"github.com/lanl/qanneal/internal/app"
	"github.com/lanl/qanneal/internal/appshell"
)

func main() {
	appshell.Main(app.RunVerify)
}
