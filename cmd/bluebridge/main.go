package main

import "github.com/bluebridge/bluebridge-go/cmd"

func main() {
	cmd.Execute()
}
