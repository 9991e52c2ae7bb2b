package main

import "github.com/andresmejia3/emotag/cmd"

func main() {
	cmd.Execute()
}
