package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(log)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "callpipe",
		Short:         "Transcribe, analyse and store recorded calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml)")

	open := func(cmd *cobra.Command) (*app, error) {
		return newApp(cmd.Context(), cfgPath, log)
	}
	root.AddCommand(
		newProcessCmd(open),
		newShowCmd(open),
		newListCmd(open),
		newUploadCmd(open),
		newFilesCmd(open),
		newSearchCmd(open),
	)
	return root
}
