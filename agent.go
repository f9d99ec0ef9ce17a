package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dotside-studios/checkin-agent/checkin"
	"github.com/dotside-studios/checkin-agent/config"
	"github.com/dotside-studios/checkin-agent/nfc"
	"github.com/dotside-studios/checkin-agent/protocol"
	"github.com/dotside-studios/checkin-agent/server"
)

// Pauses between scan loop iterations. The cooldown after a finished scan
// gives the attendee time to lift the badge so it is not read twice; the
// failure delay keeps a broken reader from spinning the loop hot.
const (
	scanCooldown      = 2 * time.Second
	failureDelay      = 500 * time.Millisecond
	deviceStatusEvery = 10 * time.Second
)

// Agent ties the reader, the check-in client, the orchestrator, and the
// status server together and runs the scan loop.
type Agent struct {
	Logger       *log.Logger
	Config       *config.Config
	Reader       *nfc.Reader
	Client       *checkin.Client
	Orchestrator *checkin.Orchestrator
	Server       *server.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	checkin     bool // current scan direction
	lastOutcome *checkin.Outcome
}

// NewAgent wires an agent from configuration. It authenticates against the
// service, so it can block for a few seconds on password login.
func NewAgent(cfg *config.Config) (*Agent, error) {
	logger := log.New(os.Stderr, "[agent] ", log.LstdFlags)

	var manager nfc.Manager
	switch cfg.Backend {
	case config.BackendLibNFC:
		manager = nfc.NewLibNFCManager(logger)
	default:
		manager = nfc.NewPCSCManager(logger)
	}
	reader := nfc.NewReader(manager, cfg.Device, logger)

	var client *checkin.Client
	var err error
	if cfg.Token != "" {
		client, err = checkin.FromToken(cfg.BaseURL, cfg.Token)
	} else {
		logger.Printf("logging in to %s as %s...", cfg.BaseURL, cfg.Username)
		client, err = checkin.Login(cfg.BaseURL, cfg.Username, cfg.Password)
	}
	if err != nil {
		return nil, fmt.Errorf("authenticating with %s: %w", cfg.BaseURL, err)
	}
	client.SetLogger(logger)

	srv := server.New(server.Config{
		Port:           cfg.Port,
		APISecret:      cfg.APISecret,
		Tag:            cfg.Tag,
		SessionTimeout: time.Minute,
		Logger:         logger,
	})

	agent := &Agent{
		Logger:  logger,
		Config:  cfg,
		Reader:  reader,
		Client:  client,
		Server:  srv,
		checkin: cfg.Checkin,
	}
	agent.Orchestrator = checkin.NewOrchestrator(reader, client, checkin.OrchestratorOptions{
		ReadTimeout:   cfg.ReadTimeout(),
		SubmitTimeout: cfg.SubmitTimeout(),
		Logger:        logger,
		OnState:       func(s checkin.State) { srv.BroadcastAgentState(s.String()) },
	})
	return agent, nil
}

// Start launches the status server and the scan loop.
func (a *Agent) Start() error {
	if a.cancel != nil {
		return fmt.Errorf("agent is already running")
	}
	if err := a.Server.Start(); err != nil {
		return err
	}

	// Confirm the tag exists before scanning badges against it.
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.SubmitTimeout())
	names, err := a.Client.GetTagNames(ctx, false)
	cancel()
	if err != nil {
		a.Logger.Printf("could not verify tag %q: %v", a.Config.Tag, err)
	} else if !contains(names, a.Config.Tag) {
		a.Logger.Printf("warning: tag %q is not among the service's tags %v", a.Config.Tag, names)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	a.cancel = cancelRun
	a.wg.Add(2)
	go a.scanLoop(runCtx)
	go a.deviceStatusLoop(runCtx)
	return nil
}

// Stop cancels the scan loop, waits for it to drain, and shuts the server down.
func (a *Agent) Stop() {
	if a.cancel == nil {
		a.Logger.Println("agent is not running")
		return
	}
	a.Logger.Println("stopping agent...")
	a.cancel()
	a.cancel = nil
	a.wg.Wait()
	a.Server.Stop()
	a.Logger.Println("agent stopped")
}

// Direction reports whether the agent is checking badges in or out.
func (a *Agent) Direction() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkin
}

// SetDirection flips between check-in and check-out. Takes effect on the
// next scan.
func (a *Agent) SetDirection(checkin bool) {
	a.mu.Lock()
	a.checkin = checkin
	a.mu.Unlock()
	a.Logger.Printf("direction set to checkin=%t", checkin)
}

// LastOutcome returns the most recent successful scan, if any.
func (a *Agent) LastOutcome() *checkin.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastOutcome
}

func (a *Agent) setLastOutcome(o *checkin.Outcome) {
	a.mu.Lock()
	a.lastOutcome = o
	a.mu.Unlock()
}

func (a *Agent) scanLoop(ctx context.Context) {
	defer a.wg.Done()
	a.Logger.Printf("scanning badges for tag %q", a.Config.Tag)

	for ctx.Err() == nil {
		req := checkin.ScanRequest{Tag: a.Config.Tag, Checkin: a.Direction()}
		started := time.Now()
		outcome, err := a.Orchestrator.Process(ctx, req)
		elapsed := time.Since(started).Seconds()

		switch {
		case err == nil:
			a.setLastOutcome(outcome)
			a.Server.Metrics().RecordScan(outcome.Status.String(), elapsed)
			a.Server.BroadcastScanResult(outcomeToPayload(outcome, req))
			sleepCtx(ctx, scanCooldown)

		case checkin.IsCancelled(err):
			return

		case checkin.IsTimeout(err):
			// Nobody tapped within the window. Not an event worth
			// broadcasting; go straight back to waiting.
			a.Server.Metrics().RecordScan(checkin.ErrTimeout.String(), elapsed)

		default:
			code := checkin.CodeOf(err)
			a.Server.Metrics().RecordScan(code.String(), elapsed)
			a.Server.BroadcastScanError(errorToPayload(code, err))
			sleepCtx(ctx, failureDelay)
		}
	}
}

// deviceStatusLoop periodically reports reader availability to status clients.
func (a *Agent) deviceStatusLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(deviceStatusEvery)
	defer ticker.Stop()

	var lastConnected *bool
	for {
		devices, err := a.Reader.ListDevices()
		connected := err == nil && len(devices) > 0
		if lastConnected == nil || *lastConnected != connected {
			lastConnected = &connected
			a.Server.BroadcastDeviceStatus(deviceStatusPayload(connected, devices, err))
			if !connected {
				a.Logger.Printf("no reader available: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func outcomeToPayload(o *checkin.Outcome, req checkin.ScanRequest) protocol.ScanResultPayload {
	return protocol.ScanResultPayload{
		Status:    o.Status.String(),
		UserName:  o.User.Name,
		UserEmail: o.User.Email,
		Tag:       req.Tag,
		CheckedIn: o.Tag.CheckedIn,
		ScannedAt: time.Now().Format(time.RFC3339),
	}
}

func errorToPayload(code checkin.Code, err error) protocol.ScanErrorPayload {
	return protocol.ScanErrorPayload{
		Code:      code.String(),
		Message:   err.Error(),
		ScannedAt: time.Now().Format(time.RFC3339),
	}
}

func deviceStatusPayload(connected bool, devices []string, err error) protocol.DeviceStatusPayload {
	p := protocol.DeviceStatusPayload{Connected: connected}
	if len(devices) > 0 {
		p.Reader = devices[0]
	}
	if err != nil {
		p.Message = err.Error()
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
