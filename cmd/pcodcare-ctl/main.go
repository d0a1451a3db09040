package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"pcodcare/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pcodcare-ctl [--socket path] start|stop|toggle|clear|ask")
		cli.PrintDefaults()
	}
	cli.Parse()

	arg := "toggle"
	if cli.NArg() > 0 {
		arg = cli.Arg(0)
	}

	cmd, err := ipc.ParseCommand(arg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Usage()
		os.Exit(2)
	}

	if err := ipc.SendCommand(*socket, cmd); err != nil {
		fmt.Println("pcodcare daemon:", err)
		os.Exit(1)
	}
}
