package main

import "github.com/OpenMDAO/qsubrun/cmd"

func main() {
	cmd.Execute()
}
