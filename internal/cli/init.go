package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize eggcms configuration and storage",
		Long: "Create the configuration directory with a default config.yaml, create\n" +
			"the data directory, and reconcile the database with the schemas.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, configDir, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysError("create config directory: %w", err)
	}
	wrote, err := ensureDefaultConfigFile(configDir)
	if err != nil {
		return sysError("write config: %w", err)
	}

	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	if wrote {
		fmt.Fprintf(out, "Wrote %s\n", filepath.Join(configDir, configFileExt))
	}
	fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintf(out, "eggcms initialized with %d schemas\n", len(s.schemas))
	return nil
}
