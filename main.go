package main

import "github.com/sr-lab/GLITCH-sub000/cmd"

func main() {
	cmd.Execute()
}
