package main

import "github.com/aweris/bigfile/cmd/git-bigfile/cmd"

func main() {
	cmd.Execute()
}
