// Command sf1r-enginectl is a minimal wiring entrypoint for the core
// engine: it loads a collection's JSON configuration, constructs the
// collaborator stack, and runs one operation to completion. It is
// scaffolding around the library, not a specified operation in its
// own right, the same way the teacher ships cmd/aindex next to its
// index library.
package main

import (
	"log"
	"os"

	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "sf1r-enginectl"
	app.HelpName = os.Args[0]
	app.Usage = "operate a core engine collection"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to the collection's JSON configuration file"},
	}
	app.Commands = []cli.Command{
		buildCommand,
		rebuildCommand,
		recommendBuildCommand,
		serveCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configPath(ctx *cli.Context) string {
	if path := ctx.String("config"); path != "" {
		return path
	}
	return ctx.GlobalString("config")
}
