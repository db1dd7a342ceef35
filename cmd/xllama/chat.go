package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/xllama/pkg/chat"
	"github.com/go-go-golems/xllama/pkg/events"
	"github.com/go-go-golems/xllama/pkg/helpers"
	"github.com/go-go-golems/xllama/pkg/inference/factory"
	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/go-go-golems/xllama/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the model in an interactive terminal UI",
	Args:  cobra.NoArgs,
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

		session, err := chat.NewSessionFromSettings(s, provider,
			chat.WithEventSinks(router.NewSink(events.DefaultTopic)))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		options := []tea.ProgramOption{
			tea.WithMouseCellMotion(), // turn on mouse support so we can track the mouse wheel
			tea.WithContext(ctx),
		}
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			options = append(options, tea.WithOutput(os.Stderr))
		} else {
			options = append(options, tea.WithAltScreen())
		}

		p := tea.NewProgram(
			ui.InitialModel(session,
				ui.WithContext(ctx),
				ui.WithGlamourStyle(viper.GetString("glamour-style")),
			),
			options...,
		)

		router.AddHandler("ui", events.DefaultTopic, ui.EventForwardFunc(p))

		log.Info().
			Str("session_id", session.ID).
			Str("api_type", string(s.ApiType)).
			Str("model", s.Model.Name).
			Msg("starting chat")

		eg := errgroup.Group{}

		eg.Go(func() error {
			defer cancel()
			return router.Run(ctx)
		})

		eg.Go(func() error {
			defer cancel()
			<-router.Running()
			_, err := p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})

		return eg.Wait()
	},
}

func init() {
	chatCmd.Flags().String("glamour-style", "auto", "Markdown style for answers (auto, dark, light, notty)")
	cobra.CheckErr(viper.BindPFlag("glamour-style", chatCmd.Flags().Lookup("glamour-style")))
}
