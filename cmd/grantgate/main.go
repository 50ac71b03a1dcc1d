package main

import "github.com/Grant-Gate/grantgate/cmd/grantgate/cmd"

func main() {
	cmd.Execute()
}
