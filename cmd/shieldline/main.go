package main

import (
	// Register publishers via side-effects
	_ "shieldline/internal/publishers/github"
	_ "shieldline/internal/publishers/stdout"
)

func main() {
	Execute()
}
