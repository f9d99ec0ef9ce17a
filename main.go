// Package main runs the badge check-in agent: it reads NFC badges at an
// event door, submits check-ins to the registration service, and broadcasts
// results to status clients over WebSocket.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/systray"

	"github.com/dotside-studios/checkin-agent/buildinfo"
	"github.com/dotside-studios/checkin-agent/config"
)

var (
	baseURLFlag    string
	tokenFlag      string
	tagFlag        string
	checkoutFlag   bool
	devicePathFlag string
	backendFlag    string
	portFlag       int
	apiSecretFlag  string
	cliFlag        bool
	versionFlag    bool
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadPartial()
	if err != nil {
		return nil, err
	}

	// Flags beat file and environment, but only the ones actually given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = baseURLFlag
		case "token":
			cfg.Token = tokenFlag
		case "tag":
			cfg.Tag = tagFlag
		case "checkout":
			cfg.Checkin = !checkoutFlag
		case "device":
			cfg.Device = devicePathFlag
		case "backend":
			cfg.Backend = backendFlag
		case "port":
			cfg.Port = portFlag
		case "api-secret":
			cfg.APISecret = apiSecretFlag
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	flag.StringVar(&baseURLFlag, "base-url", "", "Check-in service root URL")
	flag.StringVar(&tokenFlag, "token", "", "Auth token (skips username/password login)")
	flag.StringVar(&tagFlag, "tag", "", "Tag to check badges into, e.g. \"dinner\"")
	flag.BoolVar(&checkoutFlag, "checkout", false, "Check badges out instead of in")
	flag.StringVar(&devicePathFlag, "device", "", "Reader to use (optional, default: first found)")
	flag.StringVar(&backendFlag, "backend", "", "Reader backend: pcsc or libnfc")
	flag.IntVar(&portFlag, "port", 0, "Port for the local status server")
	flag.StringVar(&apiSecretFlag, "api-secret", "", "Secret required from status clients (optional)")
	flag.BoolVar(&cliFlag, "cli", false, "Run in CLI mode (default: system tray mode)")
	flag.BoolVar(&versionFlag, "version", false, "Print version and exit")
	flag.Parse()

	if versionFlag {
		fmt.Println(buildinfo.BuildInfo())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	agent, err := NewAgent(cfg)
	if err != nil {
		log.Fatalf("failed to initialize agent: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cliFlag {
		if err := agent.Start(); err != nil {
			log.Fatalf("failed to start agent: %v", err)
		}
		defer agent.Stop()

		<-sigChan
		log.Println("shutdown signal received, stopping agent...")
		return
	}

	// Default systray mode
	go func() {
		<-sigChan
		systray.Quit()
	}()
	systray.Run(trayReady(agent), func() { agent.Stop() })
}
