package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/stereo-recorder/internal/app"
	"github.com/petems/stereo-recorder/internal/config"
	"github.com/petems/stereo-recorder/internal/logging"
	"github.com/rs/zerolog"
)

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	// Menu items
	mStartStop  *systray.MenuItem
	mSplit      *systray.MenuItem
	mMode       *systray.MenuItem
	mDevices    *systray.MenuItem
	mCopyPath   *systray.MenuItem
	mRunAtLogin *systray.MenuItem
}

// Status update methods for the app to call. They run under the app's lock
// and must not call back into it.
func (u *UI) SetIdle() {
	u.updateStatus("idle")
	if u.mStartStop != nil {
		u.mStartStop.SetTitle(startStopTitle(false))
	}
	if u.mCopyPath != nil {
		u.mCopyPath.Enable()
	}
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
	if u.mStartStop != nil {
		u.mStartStop.SetTitle(startStopTitle(true))
	}
}

func (u *UI) SetProcessing() {
	u.updateStatus("processing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func New(application *app.App, cfg *config.Config, log zerolog.Logger, version, commit string) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log,
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks on the tray event loop until Quit is chosen or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus("idle")
	systray.SetTooltip("Stereo WAV recorder")

	// Build menu
	u.mStartStop = systray.AddMenuItem(startStopTitle(false), "Start or stop a recording")
	systray.AddSeparator()

	u.mSplit = systray.AddMenuItemCheckbox("Split Channels", "Write left and right to separate mono files", u.cfg.Output.SplitChannels)
	u.mMode = systray.AddMenuItem(modeTitle(u.cfg.Mode), "Toggle between modes")
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	u.mCopyPath = systray.AddMenuItem("Copy Last Recording Path", "Copy the folder of the last recording")
	u.mCopyPath.Disable()

	systray.AddSeparator()
	u.mRunAtLogin = systray.AddMenuItemCheckbox("Run at Login", "Start on system boot", u.cfg.RunAtLogin)

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About Stereo Recorder")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggleRecording()
		case <-u.mSplit.ClickedCh:
			u.toggleSplit()
		case <-u.mMode.ClickedCh:
			u.toggleMode()
		case <-u.mCopyPath.ClickedCh:
			u.copyLastPath()
		case <-u.mRunAtLogin.ClickedCh:
			u.toggleRunAtLogin()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	// Get devices from app
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == u.cfg.Audio.DeviceID || (u.cfg.Audio.DeviceID == "" && dev.Default) {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Could not change audio device")
					continue
				}
				// Uncheck all other items
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				// Check this item
				menuItem.Check()
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) toggleRecording() {
	if err := u.app.ToggleRecording(); err != nil {
		u.log.Error().Err(err).Msg("Recording action failed")
		u.mStartStop.SetTitle(startStopTitle(u.app.IsRecording()))
	}
}

func (u *UI) toggleSplit() {
	split := !u.app.Split()
	if err := u.app.SetSplit(split); err != nil {
		u.log.Warn().Err(err).Msg("Could not change channel split")
		return
	}
	if split {
		u.mSplit.Check()
		u.log.Info().Msg("Recording left and right to separate files")
	} else {
		u.mSplit.Uncheck()
		u.log.Info().Msg("Recording to one stereo file")
	}
}

func (u *UI) toggleMode() {
	oldMode := u.cfg.Mode
	newMode := config.ModePushToTalk
	if oldMode == config.ModePushToTalk {
		newMode = config.ModeToggle
	}
	if err := u.app.SetMode(newMode); err != nil {
		u.log.Error().Err(err).Msg("Failed to save mode")
	}
	u.mMode.SetTitle(modeTitle(newMode))
	u.log.Info().Str("from", oldMode).Str("to", newMode).Msg("Changed mode")
}

func (u *UI) copyLastPath() {
	last, ok := u.app.LastRecording()
	if !ok {
		return
	}
	if err := clipboard.WriteAll(last.Dir); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy recording path")
		return
	}
	u.log.Info().Str("dir", last.Dir).Msg("Copied recording path")
}

func (u *UI) toggleRunAtLogin() {
	u.cfg.RunAtLogin = !u.cfg.RunAtLogin
	if u.cfg.RunAtLogin {
		u.mRunAtLogin.Check()
		u.log.Info().Msg("Enabled run at login")
	} else {
		u.mRunAtLogin.Uncheck()
		u.log.Info().Msg("Disabled run at login")
	}
	if err := u.cfg.Save(); err != nil {
		u.log.Error().Err(err).Msg("Failed to save config")
	}
	// TODO: Platform-specific login item registration
}

func (u *UI) openLogs() {
	name, args := openCommand(runtime.GOOS, logging.LogPath())
	if err := exec.Command(name, args...).Start(); err != nil {
		u.log.Error().Err(err).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	// TODO: Show about dialog with native UI
	fmt.Printf("Stereo Recorder %s (%s)\nStereo WAV capture\n", u.version, u.commit)
}

func (u *UI) onExit() {
	if err := u.app.Shutdown(context.Background()); err != nil {
		u.log.Error().Err(err).Msg("Shutdown error")
	}
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(status string) {
	emoji := emojiForStatus(status)
	systray.SetTitle(fmt.Sprintf("🎙 %s", emoji))
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - recording
	case "processing":
		return "🟡" // Yellow - finalizing files
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}

func startStopTitle(recording bool) string {
	if recording {
		return "Stop Recording"
	}
	return "Start Recording"
}

func modeTitle(mode string) string {
	if mode == config.ModeToggle {
		return "Mode: Toggle"
	}
	return "Mode: Push-to-Talk"
}

// openCommand returns the command that opens path with the desktop's default app.
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", strings.ReplaceAll(path, "/", `\`)}
	default:
		return "xdg-open", []string{path}
	}
}
