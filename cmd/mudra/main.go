package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/audio"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
	"github.com/ayusman/mudra/internal/view"
	"github.com/ayusman/mudra/testdata"
)

type options struct {
	addr       string
	dataDir    string
	tuning     string
	script     string
	replay     string
	camera     int
	width      int
	height     int
	tickRate   int
	headless   bool
	mute       bool
	volume     float64
	pluginDir  string
	pluginWait int
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.addr, "addr", ":8080", "HTTP listen address, empty to disable")
	flag.StringVar(&o.dataDir, "data", "", "data directory (default ~/.mudra)")
	flag.StringVar(&o.tuning, "tuning", "", "tuning JSON file")
	flag.StringVar(&o.script, "script", "", "play an embedded landmark sequence instead of the camera")
	flag.StringVar(&o.replay, "replay", "", "replay a recorded session by id")
	flag.IntVar(&o.camera, "camera", 0, "camera device id")
	flag.IntVar(&o.width, "width", 960, "field width")
	flag.IntVar(&o.height, "height", 540, "field height")
	flag.IntVar(&o.tickRate, "rate", app.DefaultTickRate, "headless ticks per second")
	flag.BoolVar(&o.headless, "headless", false, "run without a window, with a tray menu")
	flag.BoolVar(&o.mute, "mute", false, "disable cue audio")
	flag.Float64Var(&o.volume, "volume", audio.DefaultConfig().Volume, "cue audio volume 0..1")
	flag.StringVar(&o.pluginDir, "plugins", "", "plugin directory (default <data>/plugins)")
	flag.IntVar(&o.pluginWait, "plugin-timeout", 2000, "plugin timeout in milliseconds")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	fmt.Println("Mudra - Hand Gesture Field")

	if o.script == "list" {
		for _, name := range testdata.Sequences() {
			fmt.Println(name)
		}
		return
	}

	dataDir, err := dataDirectory(o.dataDir)
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dataDir, "mudra.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	tuning, err := loadTuning(o.tuning, st)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	source, err := openSource(o, st)
	if err != nil {
		log.Fatalf("Failed to open frame source: %v", err)
	}

	a, err := app.New(app.Config{
		Engine:   tuning.EngineConfig(),
		Width:    o.width,
		Height:   o.height,
		TickRate: o.tickRate,
		Store:    st,
	}, source)
	if err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer a.Close()

	if !o.mute {
		synth := audio.New(audio.Config{
			SampleRate: audio.DefaultConfig().SampleRate,
			Volume:     o.volume,
			Buffer:     audio.DefaultConfig().Buffer,
		})
		if err := synth.Start(); err != nil {
			log.Printf("Audio disabled: %v", err)
		} else {
			defer synth.Close()
			a.AddCueSink(synth)
		}
	}

	dispatcher := startPlugins(o, dataDir)
	a.AddCueSink(dispatcher)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Close(ctx); err != nil {
			log.Printf("Plugins did not finish: %v", err)
		}
	}()

	if o.addr != "" {
		webDir := findWebDir()
		if webDir != "" {
			fmt.Printf("Serving static files from: %s\n", webDir)
		}
		srv := server.New(server.Config{
			StaticDir: webDir,
			Store:     st,
			Host:      a,
			Tuning:    tuning,
		})
		go func() {
			fmt.Printf("Starting server on %s\n", o.addr)
			if err := srv.ListenAndServe(o.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server failed: %v", err)
			}
		}()
	}

	if o.headless {
		runHeadless(a, o.addr)
		return
	}

	g := view.New(a, view.Config{
		Title:     "Mudra",
		Width:     o.width,
		Height:    o.height,
		TPS:       view.DefaultConfig().TPS,
		Frequency: view.DefaultConfig().Frequency,
		Damping:   view.DefaultConfig().Damping,
	})
	if err := view.Run(g); err != nil {
		log.Printf("Window closed: %v", err)
	}
}

// runHeadless ticks on a background goroutine and keeps the tray on the main
// thread, which systray requires.
func runHeadless(a *app.App, addr string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := tray.New(a)
	t.OnQuit(stop)
	if addr != "" {
		t.OnSettings(func() { openBrowser("http://localhost" + addr) })
	}

	go func() {
		if err := a.Run(ctx); err != nil {
			log.Printf("Tick loop failed: %v", err)
		}
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func dataDirectory(dir string) (string, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(homeDir, ".mudra")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// loadTuning layers the tuning file and then the stored overrides on the
// defaults.
func loadTuning(path string, st *store.Store) (*config.TuningConfig, error) {
	tuning := config.DefaultTuningConfig()
	if path != "" {
		file, err := config.LoadTuningConfig(path)
		if err != nil {
			return nil, err
		}
		tuning = tuning.Merge(file)
	}

	overrides, err := api.LoadTuningOverrides(st)
	if err != nil {
		log.Printf("Ignoring stored tuning overrides: %v", err)
		return tuning, nil
	}
	merged := tuning.Merge(overrides)
	if err := merged.Validate(); err != nil {
		log.Printf("Ignoring stored tuning overrides: %v", err)
		return tuning, nil
	}
	return merged, nil
}

func openSource(o options, st *store.Store) (app.FrameSource, error) {
	switch {
	case o.script != "":
		data, err := testdata.Sequence(o.script)
		if err != nil {
			return nil, err
		}
		script, err := app.ParseScript(data)
		if err != nil {
			return nil, err
		}
		log.Printf("Playing sequence %s (%d frames)", o.script, script.Len())
		return app.NewScriptSource(script), nil

	case o.replay != "":
		src, err := app.LoadReplaySource(st, o.replay)
		if err != nil {
			return nil, err
		}
		log.Printf("Replaying session %s (%d frames)", o.replay, src.Len())
		return src, nil
	}

	det, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
	if err != nil {
		return nil, err
	}
	cam := capture.DefaultCameraConfig()
	cam.DeviceID = o.camera
	return capture.NewLandmarkSource(capture.DefaultSourceConfig(), capture.NewCamera(cam), det, nil), nil
}

func startPlugins(o options, dataDir string) *plugin.Dispatcher {
	dir := o.pluginDir
	if dir == "" {
		dir = filepath.Join(dataDir, "plugins")
	}

	manager := plugin.NewManager(dir)
	if err := manager.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	for _, p := range manager.List() {
		log.Printf("Loaded plugin %s %s (cues %v)", p.Manifest.Name, p.Manifest.Version, p.Manifest.Cues)
	}
	return plugin.NewDispatcher(manager, plugin.NewExecutor(o.pluginWait), plugin.DefaultQueueSize)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
