package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/spf13/pflag"

	"voxscene/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	timeout := cli.DurationP("timeout", "t", 10*time.Second, "Reply timeout")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: vox-ctl [flags] toggle | status | replay <file>\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	msg, err := parseArgs(cli.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Request(ctx, *socket, msg)
	if err != nil {
		fmt.Println("vox-daemon not running:", err)
		os.Exit(1)
	}

	if !reply.OK {
		fmt.Fprintln(os.Stderr, "error:", reply.Error)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", reply.State, reply.Text)
}

func parseArgs(args []string) (ipc.ControlMessage, error) {
	if len(args) == 0 {
		return ipc.ControlMessage{Cmd: ipc.CmdToggle}, nil
	}

	switch args[0] {
	case ipc.CmdToggle, ipc.CmdStatus:
		if len(args) != 1 {
			return ipc.ControlMessage{}, fmt.Errorf("%s takes no arguments", args[0])
		}
		return ipc.ControlMessage{Cmd: args[0]}, nil
	case ipc.CmdReplay:
		if len(args) != 2 {
			return ipc.ControlMessage{}, fmt.Errorf("replay takes exactly one file")
		}
		path, err := filepath.Abs(args[1])
		if err != nil {
			return ipc.ControlMessage{}, err
		}
		return ipc.ControlMessage{Cmd: ipc.CmdReplay, Path: path}, nil
	default:
		return ipc.ControlMessage{}, fmt.Errorf("unknown command %q", args[0])
	}
}
