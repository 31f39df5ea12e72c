package main

import "github.com/tallychain/tally/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
