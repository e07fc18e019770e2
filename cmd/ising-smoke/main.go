// Command ising-smoke samples a two-spin Ising model through an embedding composite.
package main

import (
	"github.com/lanl/qanneal/internal/app"
	"github.com/lanl/qanneal/internal/appshell"
)

func main() {
	appshell.Main(app.RunIsingSmoke)
}
