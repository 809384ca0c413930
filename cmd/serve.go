package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-conflicts/orchestrator"
	"github.com/maastricht-university/meeting-conflicts/server"
	"github.com/maastricht-university/meeting-conflicts/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(conf.Paths.Outputs, 0o755); err != nil {
			return fmt.Errorf("create outputs dir: %w", err)
		}
		runs, err := store.Open(conf.Paths.Database)
		if err != nil {
			return err
		}
		defer runs.Close()

		srv := server.New(orchestrator.NewPipeline(conf), runs, conf.Paths.Outputs, conf.Pipeline.Version)
		go func() {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			log.Info("shutting down")
			if err := srv.Shutdown(); err != nil {
				log.WithError(err).Error("shutdown failed")
			}
		}()
		return srv.Listen(fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port))
	},
}
