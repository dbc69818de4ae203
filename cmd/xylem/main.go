package main

import "github.com/ijt/xylem/internal/cli"

func main() {
	cli.Execute()
}
