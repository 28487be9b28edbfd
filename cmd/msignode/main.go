package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/commands/server"
	"github.com/iov-one/msignode/config"
)

func helpMessage() {
	fmt.Println("msignode")
	fmt.Println("        Multisignature transaction relay node")
	fmt.Println("")
	fmt.Println("help      Print this message")
	fmt.Println("start     Run the node (start --help lists the options)")
	fmt.Println("validate  Check accounts genesis files")
	fmt.Println("version   Print the node version")
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Println("Missing command:")
		helpMessage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	rest := flag.Args()[1:]

	var err error
	switch cmd {
	case "help":
		helpMessage()
	case "start":
		err = server.StartCmd(os.Stdout, rest)
	case "validate":
		err = server.ValidateGenesis(rest)
	case "version":
		fmt.Println(msignode.BuildVersion())
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		helpMessage()
		os.Exit(1)
	}

	if config.IsHelp(err) {
		fmt.Println(err)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
