package main

import "github.com/vietddude/debugctl/internal/cli"

func main() {
	cli.Execute()
}
