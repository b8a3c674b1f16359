package main

import "github.com/emrgen/qda/cmd"

func main() {
	cmd.Execute()
}
