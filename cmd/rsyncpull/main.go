// Command rsyncpull pulls one module from an rsync protocol 27 daemon
// into a local directory. Argument parsing is intentionally minimal
// (stdlib flag): the full popt-style option surface of upstream rsync
// (rsync/options.c) is out of scope; this is a thin wrapper around
// package rsyncclient.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	rsynclog "github.com/cmur2/rsyncpull/internal/log"
	"github.com/cmur2/rsyncpull/internal/restrict"
	"github.com/cmur2/rsyncpull/rsyncclient"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rsyncpull: ")

	verbose := flag.Bool("v", false, "verbose: log each file transferred")
	dryRun := flag.Bool("n", false, "dry run: don't write anything locally")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] rsync://host[:port]/module[/path] destdir\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Arg(1), *verbose, *dryRun); err != nil {
		log.Fatal(err)
	}
}

func run(rawTarget, dest string, verbose, dryRun bool) error {
	target, err := rsyncclient.ParseTarget(rawTarget)
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", target.Addr())
	if err != nil {
		return fmt.Errorf("dialing %s: %w", target.Addr(), err)
	}
	defer conn.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if err := restrict.Destination(dest); err != nil {
		return fmt.Errorf("restricting filesystem access: %w", err)
	}

	opts := []rsyncclient.Option{rsyncclient.WithVerbose(verbose), rsyncclient.WithDryRun(dryRun)}
	if verbose {
		opts = append(opts, rsyncclient.WithLogger(rsynclog.New(os.Stderr)))
	}
	client := rsyncclient.New(opts...)

	stats, err := client.RunTarget(context.Background(), conn, target, dest)
	if err != nil {
		return err
	}
	log.Printf("transfer complete: %d bytes read, %d bytes written, %d bytes of file content", stats.Read, stats.Written, stats.Size)
	return nil
}
