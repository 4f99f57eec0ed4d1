// Package cli implements the chemflow operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/chemflow"
	"gopkg.in/yaml.v3"
)

// App holds state shared by commands
type App struct {
	configURL  string
	jsonOutput bool
	logLevel   string
	out        io.Writer
	errOut     io.Writer
	options    []chemflow.Option
	service    *chemflow.Service
}

// Service lazily creates the chemflow service from the config flag
func (a *App) Service(ctx context.Context) (*chemflow.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	config := chemflow.DefaultConfig()
	if a.configURL != "" {
		var err error
		if config, err = chemflow.LoadConfig(ctx, a.configURL); err != nil {
			return nil, err
		}
	}
	if a.logLevel != "" {
		config.Log.Level = a.logLevel
	}
	options := append([]chemflow.Option{chemflow.WithConfig(config)}, a.options...)
	srv, err := chemflow.New(ctx, options...)
	if err != nil {
		return nil, err
	}
	a.service = srv
	return srv, nil
}

// Output returns the output formatter selected by flags
func (a *App) Output() *Output {
	return NewOutput(a.jsonOutput, a.out, a.errOut)
}

// Close releases the service
func (a *App) Close() error {
	if a.service == nil {
		return nil
	}
	err := a.service.Close()
	a.service = nil
	return err
}

// NewRootCmd creates the chemflow command tree; options are applied to the service
func NewRootCmd(version string, options ...chemflow.Option) *cobra.Command {
	app := &App{out: os.Stdout, errOut: os.Stderr, options: options}
	cmd := &cobra.Command{
		Use:           "chemflow",
		Short:         "Orchestrate multi-stage computational chemistry workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.out = cmd.OutOrStdout()
			app.errOut = cmd.ErrOrStderr()
		},
	}
	cmd.PersistentFlags().StringVarP(&app.configURL, "config", "c", os.Getenv("CHEMFLOW_CONFIG"), "configuration file URL")
	cmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "output in JSON format")
	cmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.AddCommand(
		newSubmitCmd(app),
		newRunCmd(app),
		newStatusCmd(app),
		newListCmd(app),
		newCancelCmd(app),
		newResumeCmd(app),
		newRetryCmd(app),
		newDeleteCmd(app),
		newServeCmd(app),
	)
	for _, sub := range cmd.Commands() {
		runE := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			return runE(cmd, args)
		}
	}
	return cmd
}

// ParseSet converts key=value pairs into init values; values are decoded as YAML scalars
func ParseSet(pairs []string) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		var decoded interface{}
		if err := yaml.Unmarshal([]byte(value), &decoded); err != nil || decoded == nil {
			ret[key] = value
			continue
		}
		switch decoded.(type) {
		case map[string]interface{}, []interface{}:
			ret[key] = value
		default:
			ret[key] = decoded
		}
	}
	return ret, nil
}
