package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"runtime"

	"github.com/ehrbase/aqlengine/serv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log   *zap.SugaredLogger
	conf  *serv.Config
	cpath string
	cfs   afero.Fs = afero.NewOsFs()
)

// Cmd is the entry point for the CLI
func Cmd() {
	log = serv.NewLogger("simple", "info").Sugar()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "aqlc",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// setup reads the config file for the current environment
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	c, err := serv.ReadInConfigFS(path.Join(cp, serv.GetConfigName()), cfs)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	conf = c

	log = serv.NewLogger(conf.LogFormat, conf.LogLevel).Sugar()
	return nil
}

// newService reads the config and builds the compiler
func newService(ctx context.Context) (*serv.Service, error) {
	if err := setup(cpath); err != nil {
		return nil, err
	}
	return serv.NewService(ctx, conf, log)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildDetails())
		},
	}
}

// BuildDetails returns the version line printed by the CLI
func BuildDetails() string {
	if version == "" {
		return "aqlc (unknown version) " + runtime.Version()
	}
	return fmt.Sprintf("aqlc %s (%s, %s) %s", version, commit, date, runtime.Version())
}
