package servercli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tempbottle/tidis/admin"
	"github.com/tempbottle/tidis/config"
	"github.com/tempbottle/tidis/database"
	"github.com/tempbottle/tidis/gnet"
	"github.com/tempbottle/tidis/kv/engine"
	"github.com/tempbottle/tidis/lib/logger"
	RedisServer "github.com/tempbottle/tidis/redis/server"
	"github.com/tempbottle/tidis/tcp"
	"github.com/tempbottle/tidis/tikv"
	"golang.org/x/sync/errgroup"
)

var banner = `
 _   _     _ _
| |_(_) __| (_)___
| __| |/ _' | / __|
| |_| | (_| | \__ \
 \__|_|\__,_|_|___/
`

var (
	configFile string
	port       string
)

var rootCmd = &cobra.Command{
	Use:   "tidis",
	Short: "tidis is a redis protocol server storing every data structure in a transactional key value store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return StartServer()
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the redis server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return StartServer()
	},
}

// AddCommand add command into Cli
func AddCommand(cmdline *cobra.Command) {
	rootCmd.AddCommand(cmdline)
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the command line overrides
func loadConfig() (*config.ServerProperties, error) {
	if err := config.Setup(configFile); err != nil {
		return nil, err
	}
	props := config.Properties
	if port != "" {
		n, err := IsNum(port)
		if err != nil {
			return nil, err
		}
		props.Port = int(n)
	}
	return props, nil
}

// openServer opens the configured storage and wraps it in a command dispatcher
func openServer(props *config.ServerProperties) (*database.Server, error) {
	store, err := engine.Open(props.StorageEngine, props.DataDir)
	if err != nil {
		return nil, err
	}
	return database.NewServer(store, database.Options{
		TxnAPI:      props.TxnAPI,
		TxnRetry:    props.TxnRetry,
		RDBFilename: props.RDBFilename,
	}), nil
}

// StartServer serves redis clients until SIGINT or SIGTERM
func StartServer() error {
	props, err := loadConfig()
	if err != nil {
		return err
	}
	print(banner)
	logger.Setup(&logger.Settings{
		Path:       props.LogDir,
		Name:       "tidis",
		Ext:        "log",
		Level:      props.LogLevel,
		MaxSizeMB:  100,
		MaxBackups: 10,
	})
	defer logger.Sync()
	if props.CfPath != "" {
		logger.Infof("config loaded from %s", props.CfPath)
	}

	db, err := openServer(props)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if n, err := db.LoadRDB(ctx); err != nil {
		db.Close()
		return errors.WithMessage(err, "load rdb")
	} else if n > 0 {
		logger.Infof("loaded %d keys from %s", n, props.RDBFilename)
	}

	g, gctx := errgroup.WithContext(ctx)
	if props.GCInterval > 0 {
		gc, err := tikv.NewGC(db.Runner(), props.GCWorkers)
		if err != nil {
			db.Close()
			return err
		}
		defer gc.Close()
		g.Go(func() error {
			gc.Start(gctx, time.Duration(props.GCInterval)*time.Second)
			return nil
		})
	}
	if props.AdminAddr != "" {
		g.Go(func() error {
			return admin.Serve(gctx, props.AdminAddr, db)
		})
	}
	switch props.ServerEngine {
	case "gnet":
		server, err := gnet.NewServer(db, 0)
		if err != nil {
			db.Close()
			return err
		}
		g.Go(func() error {
			return server.Run(props.Addr(), true)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Close(shutdownCtx)
		})
	case "", "tcp":
		closeChan := make(chan struct{})
		g.Go(func() error {
			return tcp.ListenAndServeWithContext(&tcp.Config{
				Address:    props.Addr(),
				MaxConnect: uint32(props.MaxClients),
			}, RedisServer.MakeHandler(db), closeChan)
		})
		g.Go(func() error {
			<-gctx.Done()
			close(closeChan)
			return nil
		})
	default:
		db.Close()
		return errors.Errorf("unknown server engine %q", props.ServerEngine)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file, redis.conf style or .toml (default $CONFIG or ./redis.conf)")
	rootCmd.PersistentFlags().StringVarP(&port, "port", "p", "", "listening port, overrides the config file")
	AddCommand(serveCmd)
}
