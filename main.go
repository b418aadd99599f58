// The main package for the prospector executable.
package main

import (
	"github.com/JakeFAU/linkedin-prospector/cmd"
)

func main() {
	cmd.Execute()
}
