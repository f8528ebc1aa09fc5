package main

import "github.com/vietddude/healer/internal/cli"

func main() {
	cli.Execute()
}
