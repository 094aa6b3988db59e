package main

import "github.com/dbsmedya/modlens/cmd/modlens/cmd"

func main() {
	cmd.Execute()
}
