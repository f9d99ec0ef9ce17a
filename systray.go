package main

import (
	"fmt"
	"time"

	"fyne.io/systray"

	"github.com/dotside-studios/checkin-agent/buildinfo"
	"github.com/dotside-studios/checkin-agent/checkin"
)

// iconData is a 16x16 PNG used as the tray icon.
var iconData = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x21, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0x60, 0x60, 0xf8,
	0x4f, 0x21, 0x66, 0xf8, 0xaf, 0xa0, 0xa0, 0x40, 0x16, 0x1e, 0x35, 0x60,
	0xd4, 0x80, 0x51, 0x03, 0xa8, 0x6d, 0x00, 0x25, 0x18, 0x00, 0x15, 0x56,
	0x48, 0x90, 0xff, 0xa7, 0xa7, 0xcf, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45,
	0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// trayReady returns the systray onReady callback for the agent.
func trayReady(agent *Agent) func() {
	return func() {
		systray.SetIcon(iconData)
		systray.SetTitle(buildinfo.DisplayName)
		systray.SetTooltip(buildinfo.Description)

		mStatus := systray.AddMenuItem("Starting...", "Agent status")
		mStatus.Disable()
		mTag := systray.AddMenuItem("Tag: "+agent.Config.Tag, "Tag this station serves")
		mTag.Disable()
		mLastScan := systray.AddMenuItem("Last Scan: None", "Most recent badge scan")
		mLastScan.Disable()

		systray.AddSeparator()

		mDirMenu := systray.AddMenuItem("Direction", "Scan direction")
		mCheckIn := mDirMenu.AddSubMenuItemCheckbox("Check In", "Check badges in", agent.Direction())
		mCheckOut := mDirMenu.AddSubMenuItemCheckbox("Check Out", "Check badges out", !agent.Direction())

		systray.AddSeparator()

		mStart := systray.AddMenuItem("Start Agent", "Start scanning")
		mStop := systray.AddMenuItem("Stop Agent", "Stop scanning")
		mStart.Disable()

		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Quit the application")

		// Auto-start the agent.
		go func() {
			if err := agent.Start(); err != nil {
				agent.Logger.Printf("failed to start agent: %v", err)
				mStatus.SetTitle("Failed to Start")
				mStart.Enable()
				mStop.Disable()
				return
			}
			mStatus.SetTitle("Running")
		}()

		// Keep the last-scan line fresh.
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			var shown *checkin.Outcome
			for range ticker.C {
				outcome := agent.LastOutcome()
				if outcome == nil || outcome == shown {
					continue
				}
				shown = outcome
				mLastScan.SetTitle(fmt.Sprintf("Last Scan: %s (%s)", outcome.User.Name, outcome.Status))
			}
		}()

		go func() {
			for {
				select {
				case <-mCheckIn.ClickedCh:
					agent.SetDirection(true)
					mCheckIn.Check()
					mCheckOut.Uncheck()
				case <-mCheckOut.ClickedCh:
					agent.SetDirection(false)
					mCheckOut.Check()
					mCheckIn.Uncheck()
				case <-mStart.ClickedCh:
					if err := agent.Start(); err != nil {
						agent.Logger.Printf("failed to start agent: %v", err)
						mStatus.SetTitle("Failed to Start")
						continue
					}
					mStatus.SetTitle("Running")
					mStart.Disable()
					mStop.Enable()
				case <-mStop.ClickedCh:
					agent.Stop()
					mStatus.SetTitle("Stopped")
					mStop.Disable()
					mStart.Enable()
				case <-mQuit.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()
	}
}
