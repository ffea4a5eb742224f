// Command eggcms runs the eggcms content engine.
package main

import "github.com/lowercasename/eggcms/internal/cli"

func main() {
	cli.Execute()
}
