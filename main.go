package main

import "facegreeter/cmd"

func main() {
	cmd.Execute()
}
