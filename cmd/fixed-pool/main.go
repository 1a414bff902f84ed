// Package main is the entry point for fixed-pool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fixed-pool/internal/api"
	"fixed-pool/internal/config"
	"fixed-pool/internal/events"
	"fixed-pool/internal/logger"
	"fixed-pool/internal/scenario"
)

var (
	version = "dev"
)

// options はコマンドラインフラグの値
type options struct {
	configFile string
	presetName string
	workers    int
	items      int
	rate       float64
	logLevel   string
	serverAddr string
}

func main() {
	var opts options

	// フラグ定義
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.presetName, "preset", "", "プリセットシナリオ名 (basic, stress, quick, single, throttled, chaos)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	flag.IntVar(&opts.items, "items", 0, "投入するアイテム数")
	flag.Float64Var(&opts.rate, "rate", 0, "秒間アイテム数の上限 (0で無制限)")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.StringVar(&opts.serverAddr, "addr", "", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	var (
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
		serverMode  = flag.Bool("server", false, "APIサーバーモードで起動")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `fixed-pool - Fixed-Size Worker Pool Runner

Usage:
  fixed-pool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットシナリオを実行
  fixed-pool --preset basic

  # 設定ファイルから実行
  fixed-pool --config run.yaml

  # フラグでカスタマイズ
  fixed-pool --preset stress --workers 16 --items 50000

  # プリセット一覧を表示
  fixed-pool --list-presets

  # APIサーバーモードで起動
  fixed-pool --server --addr :3000
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("fixed-pool version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	fileConfig, err := loadFileConfig(opts.configFile)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if err := applyLogLevel(opts.logLevel, fileConfig); err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// APIサーバーモード
	if *serverMode {
		if err := runServer(serverAddr(opts.serverAddr, fileConfig)); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// シナリオ設定の決定
	scenarioConfig, err := buildScenarioConfig(opts, fileConfig)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// シナリオ実行
	if err := runScenario(scenarioConfig); err != nil {
		logger.Error("", "シナリオ実行エラー: %v", err)
		os.Exit(1)
	}
}

// loadFileConfig は設定ファイルを読み込んで検証する。パスが空なら nil を返す
func loadFileConfig(path string) (*config.FileConfig, error) {
	if path == "" {
		return nil, nil
	}

	fileConfig, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}
	if err := fileConfig.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}
	return fileConfig, nil
}

// applyLogLevel はフラグ、設定ファイルの順にログレベルを決めて適用する
func applyLogLevel(flagLevel string, fileConfig *config.FileConfig) error {
	name := flagLevel
	if name == "" && fileConfig != nil {
		name = fileConfig.Log.Level
	}

	level, err := logger.ParseLevel(name)
	if err != nil {
		return err
	}
	logger.Default.SetLevel(level)
	return nil
}

// serverAddr はフラグ、設定ファイル、既定値の順にアドレスを決める
func serverAddr(flagAddr string, fileConfig *config.FileConfig) string {
	if flagAddr != "" {
		return flagAddr
	}
	if fileConfig != nil && fileConfig.Server.Addr != "" {
		return fileConfig.Server.Addr
	}
	return ":8080"
}

// buildScenarioConfig はシナリオ設定を構築する
func buildScenarioConfig(opts options, fileConfig *config.FileConfig) (scenario.Config, error) {
	var cfg scenario.Config

	if fileConfig != nil {
		// 1. 設定ファイルから読み込み
		var err error
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	} else if opts.presetName != "" {
		// 2. プリセットから読み込み
		preset, ok := scenario.GetPreset(opts.presetName)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, scenario.ListPresets())
		}
		cfg = preset
	} else {
		// 3. デフォルト（basicシナリオ）
		cfg = scenario.BasicScenario()
	}

	// フラグでオーバーライド
	if opts.workers < 0 || opts.items < 0 || opts.rate < 0 {
		return cfg, errors.New("workers, items and rate must be non-negative")
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.items > 0 {
		cfg.Items = opts.items
	}
	if opts.rate > 0 {
		cfg.Rate = opts.rate
	}

	return cfg, nil
}

// runScenario はシナリオを実行する
func runScenario(cfg scenario.Config) error {
	workers := fmt.Sprint(cfg.Workers)
	if cfg.Workers <= 0 {
		workers = "CPU数"
	}

	fmt.Println("fixed-pool - Fixed-Size Worker Pool Runner")
	fmt.Println("==========================================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Workers: %s, Items: %d\n", workers, cfg.Items)
	fmt.Printf("Processing Delay: %v - %v\n", cfg.MinDelay, cfg.MaxDelay)
	if cfg.Rate > 0 {
		fmt.Printf("Rate Limit: %.1f items/s\n", cfg.Rate)
	}
	fmt.Println("==========================================")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// イベントはデバッグログに流す
	bus := events.NewBus()
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		logEvents(logger.Default, bus.Subscribe())
	}()

	// シナリオ実行
	engine := scenario.New(cfg)
	engine.SetEventBus(bus)
	result, err := engine.Run(ctx)
	bus.Close()
	<-logged
	if result != nil {
		// レポート出力
		fmt.Println(result.Report())
	}
	return err
}

// logEvents はチャネルが閉じるまでイベントをログに書き出す
func logEvents(log *logger.Logger, ch <-chan events.Event) {
	for e := range ch {
		switch {
		case e.Data.Error != "":
			log.Debug("events", "%s pool=%s worker=%d error=%s", e.Type, e.Pool, e.WorkerID, e.Data.Error)
		case e.Data.Fault != "":
			log.Debug("events", "%s pool=%s fault=%s delay=%s", e.Type, e.Pool, e.Data.Fault, e.Data.Delay)
		default:
			log.Debug("events", "%s pool=%s worker=%d", e.Type, e.Pool, e.WorkerID)
		}
	}
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		cfg, _ := scenario.GetPreset(name)
		fmt.Printf("  %-12s %s\n", name, cfg.Description)
	}

	fmt.Println()
	fmt.Println("使用例: fixed-pool --preset basic")
}

// runServer はAPIサーバーを起動する
func runServer(addr string) error {
	fmt.Println("fixed-pool - API Server")
	fmt.Println("=======================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := api.NewServer(addr)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}
