package main

import "github.com/lukman83/autopost/cmd"

func main() {
	cmd.Execute()
}
