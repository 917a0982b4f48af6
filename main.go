package main

import "repodex/cmd"

func main() {
	cmd.Execute()
}
