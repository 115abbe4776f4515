package main

import "github.com/andresmejia3/faceid/cmd"

func main() {
	cmd.Execute()
}
