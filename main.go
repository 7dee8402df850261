package main

import "github.com/Aikhjarto/ping-process/internal/cmd"

func main() {
	cmd.Execute()
}
