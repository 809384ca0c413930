// Package cmd holds the command line interface.
package cmd

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/meeting-conflicts/config"
)

var (
	configPath string
	conf       *cfg.Root
)

var rootCmd = &cobra.Command{
	Use:           "meeting-conflicts",
	Short:         "Attribute meeting transcripts to speakers and flag contradicting statements",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := cfg.Load(configPath)
		if err != nil {
			return err
		}
		conf = c
		setupLogging(c)
		if c.File != "" {
			log.WithField("file", c.File).Debug("config loaded")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	rootCmd.AddCommand(runCmd, serveCmd, runsCmd)
}

func setupLogging(c *cfg.Root) {
	lvl, err := log.ParseLevel(c.Pipeline.LogLvl)
	if err != nil {
		log.WithField("level", c.Pipeline.LogLvl).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	if strings.EqualFold(c.Pipeline.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
