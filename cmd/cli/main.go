package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. lookupEnv has the same signature as [os.LookupEnv].
func newRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lifeplan-cli",
		Long:          `Command line utilities for the LifePlan voice guide backend`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")

	rootCmd.AddGroup(catalogGroup, stateGroup)
	rootCmd.AddCommand(newCatalogCmd(lookupEnv), newStateCmd(lookupEnv))
	return rootCmd
}

func main() {
	// A missing .env is fine, the variables may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
