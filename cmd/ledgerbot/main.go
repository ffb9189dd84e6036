package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"

	"github.com/hiltonbrown/ledgerbot/internal/config"
)

func main() {
	cfg := config.New()
	displayAppname(cfg.GetAppName())

	if err := newRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
