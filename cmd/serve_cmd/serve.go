package serve_cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"mediavault/backend"
	"mediavault/backend/memory"
	"mediavault/backend/s3"
	"mediavault/backend/webdav"
	"mediavault/config"
	"mediavault/database"
	"mediavault/database/repository"
	L "mediavault/logger"
	"mediavault/server"
	"mediavault/thumbnail"
	"mediavault/vault"
)

type ServeCmdEnv struct {
	ConfigPath string
	NoColor    bool
}

var serveCmdEnv *ServeCmdEnv

func Execute(ctx context.Context, args []string) error {
	err := parseFlags(args)
	if err != nil {
		return err
	}
	if serveCmdEnv == nil {
		return fmt.Errorf("could not initialize env, this shouldn't happen")
	}

	configPath := serveCmdEnv.ConfigPath
	if configPath == "" {
		configPath, err = config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}
	err = config.Parse(configPath)
	if err != nil {
		return err
	}
	cfg := config.Get()
	L.Debug(fmt.Sprintf("Using config at: %s", config.GetConfigPath()))

	if cfg.LogLevel != "" {
		if err := L.SetLevelFromString(cfg.LogLevel); err != nil {
			return err
		}
	}
	// an explicit -no-color wins over the configured color mode
	if cfg.LogColorMode != "" && !serveCmdEnv.NoColor {
		if err := L.SetColorModeFromString(cfg.LogColorMode); err != nil {
			return err
		}
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close(ctx)
	err = db.Init(ctx)
	if err != nil {
		return err
	}
	L.Debug(fmt.Sprintf("Found database at: %s", cfg.DatabasePath))

	dataStore, err := newStore(&cfg.DataStore)
	if err != nil {
		return fmt.Errorf("data_store: %w", err)
	}
	cacheStore, err := newStore(&cfg.CacheStore)
	if err != nil {
		return fmt.Errorf("cache_store: %w", err)
	}

	tags := repository.NewTagRepository(db, repository.NewTagCache(repository.DefaultTagCacheTTL))
	actions := repository.NewFileActionRepository(db, tags)

	verifySsl := true
	if cfg.DataStore.Provider == config.PROVIDER_WEBDAV {
		verifySsl = cfg.DataStore.Webdav.VerifySsl
	}
	generator := thumbnail.NewHttpGenerator(verifySsl)

	v := vault.NewVault(dataStore, cacheStore, actions, tags, generator, vault.Options{
		ThumbnailWidthPixels: cfg.Thumbnail.WidthPixels,
		MaxConcurrentTasks:   cfg.Thumbnail.MaxConcurrentTasks,
		TaskTimeout:          time.Duration(cfg.Thumbnail.TaskTimeoutSeconds) * time.Second,
		ChunkByteSize:        int(cfg.ChunkByteSize),
		PresignExpirySeconds: int(cfg.PresignExpirySeconds),
	})

	return server.NewServer(cfg.Server.Host, cfg.Server.Port, v).Run(ctx)
}

func newStore(storeCfg *config.Store) (backend.Store, error) {
	switch storeCfg.Provider {
	case config.PROVIDER_WEBDAV:
		return webdav.NewWebdavStore(storeCfg.Webdav)
	case config.PROVIDER_S3:
		return s3.NewS3Store(storeCfg.S3)
	case config.PROVIDER_MEMORY:
		L.Warn("memory store holds nothing across restarts; use it for development only")
		return memory.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", storeCfg.Provider.String())
	}
}

func parseFlags(args []string) error {
	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := serveCmd.String("config", "", "Path to config.json")
	serveCmd.StringVar(configPath, "c", "", "Path to config.json")
	logLevel := serveCmd.String("log-level", L.GetLogLevel().String(), "Set log level: debug info warn error panic")
	serveCmd.StringVar(logLevel, "L", L.GetLogLevel().String(), "Set log level: debug info warn error panic")
	noColor := serveCmd.Bool("no-color", false, "Disable colored log output")
	serveCmd.Usage = func() {
		PrintUsage()
	}
	err := serveCmd.Parse(args)
	if err != nil {
		return err
	}

	if len(serveCmd.Args()) > 0 {
		return fmt.Errorf("too many arguments. For more information, check 'mediavault help serve'")
	}
	if logLevel != nil {
		err = L.SetLevelFromString(*logLevel)
		if err != nil {
			return err
		}
		L.Info(fmt.Sprintf("log level set to: %s", strings.ToUpper(*logLevel)))
	}
	if *noColor {
		if err := L.SetColorMode(L.COLOR_MODE_NEVER); err != nil {
			return err
		}
	}
	serveCmdEnv = &ServeCmdEnv{
		ConfigPath: *configPath,
		NoColor:    *noColor,
	}
	return nil
}
