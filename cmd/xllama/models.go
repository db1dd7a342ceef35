package main

import (
	"os"

	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Print the model table, the first entry is the default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		models := settings.NewDefaultModelSelector()
		if path := viper.GetString("models-file"); path != "" {
			m, err := settings.NewModelSelectorFromFile(path)
			if err != nil {
				return err
			}
			models = m
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(models); err != nil {
			return errors.Wrap(err, "could not encode model table")
		}
		return enc.Close()
	},
}
