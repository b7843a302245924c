// wpkgctl is a command-line client for wpkgbrokerd's named pipe: it
// sends one command and prints the status frames streamed back until
// the daemon closes the connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/wpkg-gp/wpkgbroker/internal/ipcclient"
)

func main() {
	server := flag.String("s", "", "Remote server name (default: local machine)")
	debug := flag.Bool("d", false, "Print raw frames including the status-code prefix")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: wpkgctl [-s server] [-d] <Execute|ExecuteNoReboot|ExecuteFromGPE|Query|Cancel|SetNetworkUser <user> <pass>>")
		os.Exit(2)
	}

	command := strings.Join(flag.Args(), " ")
	client := ipcclient.New(*server)

	err := client.Send(context.Background(), command, func(f ipcclient.Frame) {
		if *debug {
			fmt.Println(f.Raw)
			return
		}
		fmt.Println(f.Payload)
	})
	if err != nil {
		log.Fatalf("wpkgctl: %v", err)
	}
}
