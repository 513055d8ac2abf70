// cli.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/7blacky7/flowmatch/envconfig"
	"github.com/7blacky7/flowmatch/version"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "flowmatch",
		Short:         "Dense optical flow estimator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	runCmd := newRunCmd()
	benchCmd := newBenchCmd()
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			versionHandler(cmd)
		},
	}

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{
		envVars["FLOWMATCH_DEBUG"],
		envVars["FLOWMATCH_NUM_THREADS"],
		envVars["FLOWMATCH_BACKEND"],
	}
	appendEnvDocs(runCmd, envs)
	appendEnvDocs(benchCmd, envs)

	rootCmd.AddCommand(
		runCmd,
		benchCmd,
		versionCmd,
	)

	return rootCmd
}

func versionHandler(cmd *cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), "flowmatch version is %s\n", version.Version)
}
