package main

import "github.com/resqcache/resq/cmd"

func main() {
	cmd.Execute()
}
