package main

import "timesync/cmd"

func main() {
	cmd.Execute()
}
