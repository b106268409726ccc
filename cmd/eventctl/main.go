// Command eventctl replays "topic value" lines through a typed dispatcher pool.
package main

import (
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"gopkg.in/yaml.v2"

	"github.com/opdss/dispatcher/process"
)

func newRootCmd() *cobra.Command {
	var runCfg RunConfig

	rootCmd := &cobra.Command{
		Use:          "eventctl",
		Short:        "replay typed events through a dispatcher pool",
		SilenceUsage: true,
	}
	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "dispatch every \"topic value\" line of file (or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdRun(cmd, args, runCfg)
		},
	}
	runCmd.Flags().String("config-dir", "", "directory containing config.yaml")
	process.Bind(runCmd, &runCfg)

	topicsCmd := &cobra.Command{
		Use:         "topics",
		Short:       "list the known topics and their value types",
		Args:        cobra.NoArgs,
		RunE:        cmdTopics,
		Annotations: map[string]string{"type": "helper"},
	}

	rootCmd.AddCommand(runCmd, topicsCmd)
	return rootCmd
}

func cmdTopics(cmd *cobra.Command, args []string) error {
	out, err := yaml.Marshal(NewEvents().Describe())
	if err != nil {
		return errs.Wrap(err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func main() {
	process.ExecWithOptions(newRootCmd(), process.ExecOptions{EnvPrefix: "eventctl"})
}
