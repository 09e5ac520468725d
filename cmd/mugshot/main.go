// Command mugshot drives the mouse pointer from a webcam: the face moves the
// cursor, closed eyes hold the buttons and the tongue scrolls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/mugshot/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context) error {
	files := []string{".env"}
	if dir, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, "mugshot", "mugshot.env"))
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return err
	}

	cfg, err := config.FromEnv(config.Default())
	if err != nil {
		return err
	}
	return newRootCmd(cfg).ExecuteContext(ctx)
}
