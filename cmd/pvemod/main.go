package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/config"
	"github.com/CredenceHamby/mydu-pve-mod/internal/core/event"
	coresys "github.com/CredenceHamby/mydu-pve-mod/internal/core/system"
	"github.com/CredenceHamby/mydu-pve-mod/internal/persist"
	"github.com/CredenceHamby/mydu-pve-mod/internal/prefab"
	"github.com/CredenceHamby/mydu-pve-mod/internal/scripting"
	"github.com/CredenceHamby/mydu-pve-mod/internal/system"
	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            mydu-pve-mod  v0.1.0           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        construct behavior scheduler       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func run() error {
	// 1. Load config
	cfgPath := "config/pvemod.toml"
	if p := os.Getenv("PVEMOD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Connect to database and migrate
	printSection("database")

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	db, err := persist.NewDB(initCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(initCtx, db.Pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()

	handleRepo := persist.NewHandleRepo(db)
	featureRepo := persist.NewFeatureRepo(db)
	eventRepo := persist.NewEventRepo(db)

	// 4. Scripts and prefabs
	printSection("prefabs")

	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua scripts loaded")

	prefabs := prefab.NewStore(cfg.Prefabs.Dir, luaEngine, log)
	if err := prefabs.Reload(); err != nil {
		return fmt.Errorf("prefabs: %w", err)
	}
	printStat("prefabs", prefabs.Count())
	fmt.Println()

	// 5. World client
	printSection("world")

	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.World.DialTimeout)
	worldClient, err := world.Dial(dialCtx, cfg.World.URL, cfg.World.RequestTimeout, log,
		world.WithDialTimeout(cfg.World.DialTimeout))
	dialCancel()
	if err != nil {
		return fmt.Errorf("world client: %w", err)
	}
	defer worldClient.Close()
	printOK(fmt.Sprintf("connected to %s", cfg.World.URL))
	fmt.Println()

	// 6. Behavior services
	bus := event.NewBus()
	services := &behavior.Services{
		Notifier:       behavior.NewNotifier(bus, featureRepo, log),
		LastControlled: handleRepo,
		Log:            log,
		MinDeltaTime:   cfg.Loop.MinDeltaTime,
		MaxDeltaTime:   cfg.Loop.MaxDeltaTime,
	}
	registry := behavior.NewRegistry()
	prefab.RegisterScriptBehaviors(registry, luaEngine)
	cache := behavior.NewCache()
	executor := behavior.NewExecutor(prefabs, behavior.NewComposer(registry, log), cache, worldClient, services, log)

	// 7. Background refreshers
	handleRefresher := system.NewHandleRefresher(handleRepo, cfg.Loop.HandleRefreshInterval, log)
	featureGate := system.NewFeatureGate(featureRepo, cfg.Loop.FeatureName, cfg.Loop.FeatureRefreshInterval, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); handleRefresher.Run(ctx) }()
	go func() { defer wg.Done(); featureGate.Run(ctx) }()
	if cfg.Prefabs.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := prefabs.Watch(ctx); err != nil {
				log.Warn("prefab hot reload disabled", zap.Error(err))
			}
		}()
	}

	// 8. Create systems and register with runner
	loop := system.NewConstructLoop(handleRefresher.Cell(), featureGate.Cell(), executor,
		cfg.Loop.Workers, cfg.Loop.ExecutionTimeout, log)
	persistSys := system.NewEventPersistSystem(bus, eventRepo, log, cfg.Events.FlushInterval)

	frame := cfg.Loop.FrameInterval()
	runner := coresys.NewRunner()
	runner.WarnSlowFrames(frame, log)
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(loop)
	runner.Register(persistSys)
	runner.Register(system.NewContextEvictSystem(handleRefresher.Cell(), cache, cfg.Loop.EvictAfterMisses, log))

	// 9. Start frame loop
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("frame loop started (frame: %s, workers: %d)", frame, cfg.Loop.Workers))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(ctx, now.Sub(last))
			last = now
		case <-ctx.Done():
			log.Info("shutdown signal received")
			wg.Wait()
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := persistSys.Drain(flushCtx); err != nil {
				log.Error("final event flush failed", zap.Error(err))
			}
			flushCancel()
			st := loop.LastFrame()
			log.Info("scheduler stopped",
				zap.Int("contexts", cache.Len()),
				zap.Int("last_frame_launched", st.Launched),
			)
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
