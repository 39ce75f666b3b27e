package main

import "vdt/cmd"

func main() {
	cmd.Execute()
}
