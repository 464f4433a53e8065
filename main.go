package main

import "github.com/alumnijourney/apiserver/cmd"

func main() {
	cmd.Execute()
}
