package main

import "github.com/Layr-Labs/rewards-engine/cmd"

func main() {
	cmd.Execute()
}
