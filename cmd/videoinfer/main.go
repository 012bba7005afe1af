// Command videoinfer runs the multi-source real-time video inference
// pipeline supervisor (§4.7 of SPEC_FULL.md).
//
// Grounded on the teacher's client/client.go for the signal.Notify-based
// graceful shutdown idiom; the cobra command skeleton follows the
// ecosystem-standard root-command pattern (spf13/cobra, as carried in the
// pack's go.mod surface).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/n0remac/videoinfer/decoder"
	"github.com/n0remac/videoinfer/publish"
	"github.com/n0remac/videoinfer/supervisor"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		listenAddr string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "videoinfer",
		Short: "Multi-source real-time video inference client",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load configuration, connect to the inference gateway, and start processing sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.NewEntry(logrus.StandardLogger())
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			logrus.SetFormatter(&logrus.JSONFormatter{})

			return runPipeline(cmd.Context(), configPath, listenAddr, log)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the pipeline configuration document")
	runCmd.Flags().StringVar(&listenAddr, "listen", ":8089", "address the result-publishing websocket sink listens on")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	root.AddCommand(runCmd)
	return root
}

func runPipeline(ctx context.Context, configPath, listenAddr string, log *logrus.Entry) error {
	sink := publish.NewWebSocketSink(log)

	mux := http.NewServeMux()
	mux.Handle("/ws/results", sink)
	httpServer := &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("result sink http server stopped")
		}
	}()
	defer httpServer.Close()

	// No FFmpeg-based decoder is wired into this CLI entrypoint; the outbound
	// control contract is a no-op until one is.
	pipeline, err := supervisor.Setup(ctx, configPath, sink, decoder.NopController{}, log)
	if err != nil {
		return fmt.Errorf("videoinfer: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	pipeline.Run(runCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	pipeline.Close()
	return nil
}
