package main

import "gossipdb/cmd"

func main() {
	cmd.Execute()
}
