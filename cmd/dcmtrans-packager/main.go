package main

import "github.com/oshokin/dcmtrans-packager/cmd/dcmtrans-packager/cmd"

func main() {
	cmd.Execute()
}
