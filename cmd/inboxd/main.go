package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/daemon"
	"github.com/matheus3301/inbox/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	quiet := flag.Bool("quiet", false, "log to the profile log file only")
	flag.Parse()

	cfg, err := config.LoadOrEmpty(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	name, err := profile.Resolve(*profileFlag, cfg.DefaultProfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			Profile:  name,
			Settings: cfg.Profile(name),
			Quiet:    *quiet,
		}),
	)

	app.Run()
}
