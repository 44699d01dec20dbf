package main

import (
	"github.com/lweidner/akv/cmd"
)

func main() {
	cmd.Execute()
}
