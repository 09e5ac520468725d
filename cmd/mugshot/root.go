package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/mugshot/internal/actuator"
	"github.com/ayusman/mugshot/internal/app"
	"github.com/ayusman/mugshot/internal/capture"
	"github.com/ayusman/mugshot/internal/config"
	"github.com/ayusman/mugshot/internal/detector"
	"github.com/ayusman/mugshot/internal/logging"
	"github.com/ayusman/mugshot/internal/region"
	"github.com/ayusman/mugshot/internal/server"
	"github.com/ayusman/mugshot/internal/store"
	"github.com/ayusman/mugshot/internal/tray"
)

// Version is the application version.
const Version = "0.1.0"

func newRootCmd(cfg config.Config) *cobra.Command {
	noTray := !cfg.Tray

	cmd := &cobra.Command{
		Use:           "mugshot",
		Short:         "Control the mouse with your face",
		Long:          "Defaults can be set with MUGSHOT_* environment variables or a .env file; flags win.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Tray = !noTray
			if cfg.Detector == string(detector.KindLandmark) && cfg.LandmarkService == "" {
				cfg.LandmarkService = detector.FindLandmarkService(cfg.DataDir)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	f := cmd.Flags()
	f.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "camera device index")
	f.IntVar(&cfg.FPS, "fps", cfg.FPS, "camera frame rate")
	f.BoolVar(&cfg.Mirror, "mirror", cfg.Mirror, "mirror the camera image")
	f.StringVar(&cfg.Detector, "detector", cfg.Detector, "detector variant: haar or landmark")
	f.StringVar(&cfg.FaceCascade, "face-cascade", cfg.FaceCascade, "face Haar cascade XML")
	f.StringVar(&cfg.EyeCascade, "eye-cascade", cfg.EyeCascade, "eye Haar cascade XML")
	f.StringVar(&cfg.TongueModel, "tongue-model", cfg.TongueModel, "optional YOLO ONNX tongue model")
	f.StringVar(&cfg.LandmarkService, "landmark-service", cfg.LandmarkService, "command line of the face landmark service (default: scripts/"+detector.ServiceScript+" if found)")
	f.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "consecutive frames before an eye state is trusted")
	f.IntVar(&cfg.ScrollStep, "scroll-step", cfg.ScrollStep, "scroll amount per frame")
	f.StringVar(&cfg.MapArea, "map-area", cfg.MapArea, "initial map area as x1,y1,x2,y2 in [0,1]")
	f.DurationVar(&cfg.StallAfter, "stall-after", cfg.StallAfter, "report the feed stalled after this long without frames")
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "control server address")
	f.BoolVar(&noTray, "no-tray", noTray, "run without the system tray")
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the session journal and logs")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir()})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sess := &store.Session{Detector: cfg.Detector, Camera: cfg.CameraID}
	if err := st.Sessions().Create(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		if err := st.Sessions().End(sess.ID); err != nil {
			log.WithError(err).Warn("end session")
		}
	}()
	slog := log.WithField(logging.FieldSession, sess.ID)

	journal := store.NewJournal(st.Events(), sess.ID, slog)
	defer journal.Close()

	dcfg := detector.DefaultConfig()
	dcfg.FaceCascade = cfg.FaceCascade
	dcfg.EyeCascade = cfg.EyeCascade
	dcfg.TongueModel = cfg.TongueModel
	dcfg.LandmarkService = cfg.LandmarkService
	factory, err := detector.NewFactory(detector.Kind(cfg.Detector), dcfg)
	if err != nil {
		return err
	}

	area, err := cfg.Area()
	if err != nil {
		return err
	}

	mapArea := region.NewStore(area)
	preview := server.NewPreview(mapArea)
	defer preview.Close()

	camera := capture.NewCamera(cfg.CameraID, capture.WithFPS(cfg.FPS), capture.WithMirror(cfg.Mirror))

	pipeline, err := app.New(app.Config{
		Camera:     camera,
		Detector:   factory,
		Sink:       actuator.NewRobotSink(),
		Display:    preview,
		Journal:    journal,
		Logger:     slog,
		MapArea:    mapArea,
		Threshold:  cfg.Threshold,
		ScrollStep: cfg.ScrollStep,
		StallAfter: cfg.StallAfter,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	defer pipeline.Stop()

	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		slog.WithField("dir", webDir).Info("serving static files")
	}
	srv := server.New(server.Config{
		StaticDir: webDir,
		Pipeline:  pipeline,
		Preview:   preview,
		Events:    st.Events(),
		SessionID: sess.ID,
		Logger:    slog,
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("control server: %w", err)
			cancel()
		}
	}()

	if cfg.Tray {
		runTray(ctx, cancel, pipeline, previewURL(cfg.Addr, webDir), slog)
	} else {
		<-ctx.Done()
	}

	cancel()
	wg.Wait()
	slog.Info("shutting down")

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// runTray blocks in the tray event loop until Quit or ctx is cancelled.
func runTray(ctx context.Context, cancel context.CancelFunc, pipeline *app.App, url string, log logrus.FieldLogger) {
	t := tray.New(pipeline)
	t.OnToggle(pipeline.SetEnabled)
	t.OnPreview(func() {
		if err := openBrowser(url); err != nil {
			log.WithError(err).Warn("open preview")
		}
	})
	t.OnQuit(cancel)

	go func() {
		<-ctx.Done()
		tray.Quit()
	}()
	t.Run()
}

func previewURL(addr, webDir string) string {
	if webDir != "" {
		return "http://" + addr + "/"
	}
	return "http://" + addr + "/api/stream"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
