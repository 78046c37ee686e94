package main

import (
	"dropwatch/cmd/dropwatch/commands"
	"dropwatch/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
