package main

import "msggate/cmd"

func main() {
	cmd.Execute()
}
