package main

import "sport-events-backend/cmd"

func main() {
	cmd.Run()
}
