package main

import "github.com/clawlink/clawlink/cmd"

func main() {
	cmd.Execute()
}
