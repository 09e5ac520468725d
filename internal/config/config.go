// Package config holds the start-up settings for mugshot. Values are read once
// from the environment and command-line flags and never written back.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ayusman/mugshot/internal/input"
	"github.com/ayusman/mugshot/internal/region"
)

// Defaults.
const (
	DefaultAddr       = "127.0.0.1:8080"
	DefaultFPS        = 15
	DefaultScrollStep = 100
	DefaultStallAfter = 2 * time.Second
)

// Config holds configuration options for the application.
type Config struct {
	CameraID int `validate:"gte=0"`
	FPS      int `validate:"gte=1,lte=60"`
	Mirror   bool

	// Detector selects the detection variant: "haar" or "landmark".
	Detector        string `validate:"oneof=haar landmark"`
	FaceCascade     string `validate:"required_if=Detector haar"`
	EyeCascade      string `validate:"required_if=Detector haar"`
	TongueModel     string
	LandmarkService string `validate:"required_if=Detector landmark"`

	Threshold  int           `validate:"gte=1,lte=30"`
	ScrollStep int           `validate:"gte=1,lte=1000"`
	StallAfter time.Duration `validate:"gt=0"`
	MapArea    string

	Addr     string `validate:"required,hostname_port"`
	Tray     bool
	DataDir  string `validate:"required"`
	LogLevel string `validate:"oneof=trace debug info warn error"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	dataDir := ".mugshot"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".mugshot")
	}

	return Config{
		CameraID:    0,
		FPS:         DefaultFPS,
		Mirror:      true,
		Detector:    "haar",
		FaceCascade: "haarcascade_frontalface_default.xml",
		EyeCascade:  "haarcascade_eye.xml",
		Threshold:   input.DefaultConsecFrames,
		ScrollStep:  DefaultScrollStep,
		StallAfter:  DefaultStallAfter,
		MapArea:     "0,0,1,1",
		Addr:        DefaultAddr,
		Tray:        true,
		DataDir:     dataDir,
		LogLevel:    "info",
	}
}

var validate = validator.New()

// Validate checks field constraints and the initial map area.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Area(); err != nil {
		return fmt.Errorf("invalid config: map area: %w", err)
	}
	return nil
}

// Area parses MapArea ("x1,y1,x2,y2", normalized).
func (c Config) Area() (region.Area, error) {
	return ParseArea(c.MapArea)
}

// ParseArea parses "x1,y1,x2,y2" into a validated area.
func ParseArea(s string) (region.Area, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return region.Area{}, fmt.Errorf("want 4 comma-separated values, got %q", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return region.Area{}, fmt.Errorf("parse %q: %w", p, err)
		}
		v[i] = f
	}
	return region.New(v[0], v[1], v[2], v[3])
}

// LogDir is where rotated log files are written.
func (c Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath is the session journal database.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "mugshot.db")
}

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "MUGSHOT_"

// LoadDotEnv loads KEY=VALUE pairs from files into the process environment
// without overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv overlays MUGSHOT_* environment variables on c. Flags parsed later
// take precedence over the result.
func FromEnv(c Config) (Config, error) {
	strs := map[string]*string{
		"DETECTOR":         &c.Detector,
		"FACE_CASCADE":     &c.FaceCascade,
		"EYE_CASCADE":      &c.EyeCascade,
		"TONGUE_MODEL":     &c.TongueModel,
		"LANDMARK_SERVICE": &c.LandmarkService,
		"MAP_AREA":         &c.MapArea,
		"ADDR":             &c.Addr,
		"DATA_DIR":         &c.DataDir,
		"LOG_LEVEL":        &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CAMERA":      &c.CameraID,
		"FPS":         &c.FPS,
		"THRESHOLD":   &c.Threshold,
		"SCROLL_STEP": &c.ScrollStep,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "NO_TRAY"); ok {
		noTray, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("%sNO_TRAY: %w", EnvPrefix, err)
		}
		c.Tray = !noTray
	}
	return c, nil
}
