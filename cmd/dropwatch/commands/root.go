package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"dropwatch/internal/browser"
	"dropwatch/internal/catalog"
	"dropwatch/internal/inventory"
	"dropwatch/internal/notify"
	"dropwatch/internal/prefs"
	"dropwatch/internal/session"
	"dropwatch/internal/status"
	"dropwatch/internal/workflow"
	"dropwatch/lib/configutil"
	"dropwatch/lib/restyutil"
	"dropwatch/lib/serviceutil"
	"dropwatch/lib/telemetry"

	"github.com/spf13/cobra"
)

type DriverConfig struct {
	BaseUrl string `json:"base_url"`
}

type TrackerConfig struct {
	BaseUrl string `json:"base_url"`
}

type InventoryConfig struct {
	Url string `json:"url"`
}

type DashboardConfig struct {
	Port int `json:"port"`
}

type Config struct {
	Driver    DriverConfig     `json:"driver"`
	Tracker   TrackerConfig    `json:"tracker"`
	Inventory InventoryConfig  `json:"inventory"`
	Dashboard DashboardConfig  `json:"dashboard"`
	PrefsPath string           `json:"prefs_path"`
	Telemetry telemetry.Config `json:"telemetry"`

	PollIntervalSeconds int `json:"poll_interval_seconds"`
	MaxWatchHours       int `json:"max_watch_hours"`
	BackoffSeconds      int `json:"backoff_seconds"`
}

var (
	verbose    bool
	diagnostic bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dropwatch",
	Short: "dropwatch watches qualifying live streams and claims drop rewards automatically.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
	rootCmd.Flags().BoolVar(&diagnostic, "diag", false, "Diagnostic mode: stay alive on conditions that normally exit.")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.json5", "Path to the configuration file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := configutil.ReadConfig[Config](configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	tel, err := telemetry.Setup(ctx, "dropwatch", cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed", "err", err)
	}
	defer tel.Shutdown(context.Background())

	prefsPath := cfg.PrefsPath
	if prefsPath == "" {
		prefsPath = "prefs.json"
	}
	preferences, err := prefs.Load(prefsPath)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	err = preferences.Watch(ctx, nil)
	if err != nil {
		slog.Warn("preferences watch failed", "err", err)
	}

	var notifier notify.Notifier = prefNotifier{store: preferences}

	host := browser.NewRemoteHost(cfg.Driver.BaseUrl)
	host.SetHeadlessProvider(func() bool {
		return preferences.Get().Headless
	})
	cat := catalog.NewClient(cfg.Tracker.BaseUrl)
	if diagnostic {
		host.SetInstrumentOutput(restyutil.NewFilesystemOutput("debug/driver_http"))
		cat.SetInstrumentOutput(restyutil.NewFilesystemOutput("debug/tracker_http"))
	}

	invSurface, err := host.NewSurface(ctx)
	if err != nil {
		return fmt.Errorf("open inventory surface: %w", err)
	}
	defer invSurface.Close(context.Background())

	inv := inventory.NewScraper(invSurface, cfg.Inventory.Url)

	store := status.NewStore()

	sessionCfg := session.DefaultConfig()
	if cfg.PollIntervalSeconds > 0 {
		sessionCfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	if cfg.MaxWatchHours > 0 {
		sessionCfg.MaxWatch = time.Duration(cfg.MaxWatchHours) * time.Hour
	}
	runner := session.NewRunner(cat, inv, host, sessionCfg)
	runner.OnProgress = store.SetCurrentPercent

	loopCfg := workflow.Config{Diagnostic: diagnostic}
	if cfg.BackoffSeconds > 0 {
		loopCfg.Backoff = time.Duration(cfg.BackoffSeconds) * time.Second
	}
	loop := workflow.New(cat, inv, runner, store, notifier, loopCfg)

	if cfg.Dashboard.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle("/api/status", store.Handler())
		mux.Handle("/api/prefs", preferences.Handler())
		go serviceutil.StartHttpServer(cfg.Dashboard.Port, mux)
	}

	notifier.Send("Drops", "dropwatch started")
	return loop.Run(ctx)
}

// prefNotifier gates desktop notifications on the live preference.
type prefNotifier struct {
	store *prefs.Store
}

func (n prefNotifier) Send(title, message string) {
	if !n.store.Get().Notifications {
		return
	}
	notify.Desktop{}.Send(title, message)
}
