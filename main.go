package main

import "github.com/mabhi256/jrun/cmd"

func main() {
	cmd.Execute()
}
