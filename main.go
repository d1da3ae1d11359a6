package main

import "github.com/campusfind/apiserver/cmd"

func main() {
	cmd.Execute()
}
