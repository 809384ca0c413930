package main

import "github.com/maastricht-university/meeting-conflicts/cmd"

func main() {
	cmd.Execute()
}
