package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AzielCF/az-tgclean/pkg/utils"
	"github.com/AzielCF/az-tgclean/ui/rest"
	"github.com/AzielCF/az-tgclean/ui/websocket"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the chat list, cache and deletion API over http",
	RunE:  restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	app, err := rest.NewApp(ctx, cfg.App, rest.Deps{
		Chats:    a.chats,
		Auth:     a.sessions,
		Cache:    a.cache,
		Deletion: a.deletion,
		Pool:     a.pool,
		Feed:     a.chats,
	})
	if err != nil {
		return err
	}

	websocket.SetValkeyClient(a.valkey, utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages))
	go websocket.RunHub(ctx)
	go websocket.ForwardSnapshots(ctx, a.chats)

	go func() {
		<-ctx.Done()
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	logrus.Infof("[REST] Listening on :%s", cfg.App.Port)
	return app.Listen(":" + cfg.App.Port)
}
