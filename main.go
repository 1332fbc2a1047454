package main

import (
	"goldwatcher/internal/cli"
)

func main() {
	cli.Execute()
}
