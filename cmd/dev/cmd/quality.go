package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func qualityCmd(use, short string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run()
			if err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return qualityCmd("test", "Run unit tests (driver, adapters, cli)", test.Test)
}

func LintCmd() *cobra.Command {
	return qualityCmd("lint", "Run linting", test.Lint)
}

// IntegrationTestCmd runs the tests that need a sensor attached to the bridge.
func IntegrationTestCmd() *cobra.Command {
	return qualityCmd("integration-test", "Run hardware integration tests", test.Integ)
}
