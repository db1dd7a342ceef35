package main

import (
	"os"
	"os/signal"
	"strings"

	"github.com/go-go-golems/xllama/pkg/chat"
	"github.com/go-go-golems/xllama/pkg/events"
	"github.com/go-go-golems/xllama/pkg/helpers"
	"github.com/go-go-golems/xllama/pkg/inference/factory"
	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run <message>",
	Short: "Send a single message and stream the answer to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.NewSettingsFromViper(viper.GetViper())
		if err != nil {
			return err
		}
		provider, err := factory.NewProviderFromSettings(s)
		if err != nil {
			return err
		}

		router, err := events.NewEventRouter(events.WithLogger(helpers.NewWatermill(log.Logger)))
		if err != nil {
			return err
		}
		defer func() {
			_ = router.Close()
		}()

		// piped output gets the bare completion
		name := ""
		if isatty.IsTerminal(os.Stdout.Fd()) {
			name = "Assistant"
		}
		router.AddHandler("printer", events.DefaultTopic, events.StepPrinterFunc(name, os.Stdout))
		if rawEvents, _ := cmd.Flags().GetBool("raw-events"); rawEvents {
			router.AddHandler("raw-events", events.DefaultTopic, router.DumpRawEvents(os.Stderr))
		}

		session, err := chat.NewSessionFromSettings(s, provider,
			chat.WithEventSinks(router.NewSink(events.DefaultTopic)))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		message := strings.Join(args, " ")
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			return router.Run(ctx)
		})

		eg.Go(func() error {
			defer func() {
				_ = router.Close()
			}()
			<-router.Running()

			completion, err := session.Submit(ctx, message, nil)
			if err != nil {
				return err
			}
			log.Debug().Int("length", len(completion)).Str("session_id", session.ID).Msg("completion done")
			return nil
		})

		return eg.Wait()
	},
}


func init() {
	runCmd.Flags().Bool("raw-events", false, "Dump every chat event as JSON to stderr")
}
