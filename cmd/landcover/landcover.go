package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/landcover/server"
	"github.com/cyclopcam/landcover/server/config"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("landcover", "Land cover segmentation and area measurement service")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration YAML file", Default: "landcover.yaml"})
	port := parser.Int("p", "port", &argparse.Options{Help: "Override the configured HTTP port", Default: 0})
	writeConfig := parser.Flag("", "writeconfig", &argparse.Options{Help: "Write the default configuration to the config file and exit", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if *writeConfig {
		check(config.SaveConfig(config.DefaultConfig(), *configFile))
		fmt.Printf("Wrote default config to %v\n", *configFile)
		return
	}

	srv, err := server.NewServer(*configFile)
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	listenPort := srv.Config.Server.Port
	if *port != 0 {
		listenPort = *port
	}
	err = srv.ListenHTTP(fmt.Sprintf(":%v", listenPort))
	if err != nil && err != http.ErrServerClosed {
		srv.Log.Errorf("ListenHTTP: %v", err)
		os.Exit(1)
	}
}
