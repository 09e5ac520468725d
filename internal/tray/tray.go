// Package tray provides the system tray menu for mugshot.
package tray

import (
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/mugshot/internal/app"
)

// StatusSource reports pipeline status for the menu.
type StatusSource interface {
	Status() app.Status
}

// Tray represents the system tray application.
type Tray struct {
	status   StatusSource
	interval time.Duration

	onToggle  func(enabled bool) error
	onPreview func()
	onQuit    func()
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuFeed      *systray.MenuItem
	menuDetection *systray.MenuItem

	stop chan struct{}
}

// New creates a new Tray that refreshes its labels from status once a second.
func New(status StatusSource) *Tray {
	return &Tray{
		status:   status,
		interval: time.Second,
		stop:     make(chan struct{}),
	}
}

// OnToggle sets the callback invoked when Start/Stop is clicked.
func (t *Tray) OnToggle(fn func(enabled bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnPreview sets the callback for the preview menu item.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func Quit() {
	systray.Quit()
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mugshot")
	systray.SetTooltip("Mugshot face-driven mouse")

	labels := menuLabels(t.status.Status())
	t.menuToggle = systray.AddMenuItem(labels.toggle, "Start or stop mouse control")
	systray.AddSeparator()

	t.menuFeed = systray.AddMenuItem(labels.feed, "Camera feed state")
	t.menuFeed.Disable()
	t.menuDetection = systray.AddMenuItem(labels.detection, "Detector state")
	t.menuDetection.Disable()
	systray.AddSeparator()

	menuPreview := systray.AddMenuItem("Open Preview...", "Open the preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mugshot")

	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuPreview.ClickedCh:
				t.handlePreview()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.stop)
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	labels := menuLabels(t.status.Status())
	t.menuToggle.SetTitle(labels.toggle)
	t.menuFeed.SetTitle(labels.feed)
	t.menuDetection.SetTitle(labels.detection)
}

// handleToggle flips actuation relative to the pipeline's current state.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		// Errors surface through the status labels.
		_ = callback(!t.status.Status().Enabled)
	}
	t.refresh()
}

func (t *Tray) handlePreview() {
	t.mu.RLock()
	callback := t.onPreview
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

type labels struct {
	toggle    string
	feed      string
	detection string
}

func menuLabels(s app.Status) labels {
	l := labels{
		toggle:    "▶ Start",
		feed:      "Feed: live",
		detection: "Detection: ready",
	}
	if s.Enabled {
		l.toggle = "■ Stop"
	}
	if s.ActuationHalted {
		l.toggle = "Mouse control halted"
	}

	switch {
	case !s.Running:
		l.feed = "Feed: stopped"
	case s.FeedStalled:
		l.feed = "Feed: stalled"
	}

	switch {
	case s.DetectorError != "":
		l.detection = "Detection: unavailable"
	case !s.DetectorReady:
		l.detection = "Detection: loading"
	}
	return l
}
