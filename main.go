package main

import (
	"github.com/AzielCF/az-tgclean/cmd"
)

func main() {
	cmd.Execute()
}
