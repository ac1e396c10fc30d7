package main

import "github.com/valpere/wgs_correction/cmd"

func main() {
	cmd.Execute()
}
