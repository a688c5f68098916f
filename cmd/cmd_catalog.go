package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [TYPE]",
		Short: "Show the reference model types known to the compiler",
		Long: `Without an argument lists all concrete RM types. With a type name prints
its attributes and the types each attribute can hold.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cmdCatalog,
	}
}

func cmdCatalog(cmd *cobra.Command, args []string) error {
	s, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		fmt.Fprintln(out, strings.Join(s.Types(), "\n"))
		return nil
	}

	td, err := s.DescribeType(strings.ToUpper(args[0]))
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(td); err != nil {
		return err
	}
	return enc.Close()
}
