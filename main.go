package main

import "github.com/photokit/facetree/cmd"

func main() {
	cmd.Execute()
}
