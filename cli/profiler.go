package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/absmach/profiler/pkg/sdk"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	DefTLSVerification = false
	DefProfilerURL     = "http://localhost:9021"
)

var errInvalidIndex = errors.New("index must be a non-negative integer")

var psdk sdk.SDK

func SetSDK(s sdk.SDK) {
	psdk = s
}

func NewHealthCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show health report",
		Long:  `Show aggregate metrics and the outcome of the health checks.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := psdk.Report()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if summary {
				logSummaryCmd(*cmd, r.Health)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}
	cmd.Flags().BoolVarP(&summary, "summary", "s", false, "print only the passed check count")

	return cmd
}

func NewSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [index]",
		Short: "View archived snapshot",
		Long:  `View an archived snapshot. Index 0, the default, is the most recent.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			index := 0
			if len(args) == 1 {
				i, err := strconv.Atoi(args[0])
				if err != nil || i < 0 {
					logErrorCmd(*cmd, errInvalidIndex)

					return
				}
				index = i
			}

			s, err := psdk.Snapshot(index)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, s)
		},
	}
}

func NewPowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "power",
		Short: "Show power status",
		Long:  `Show power mode, button state and sleep statistics.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := psdk.Power()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}
}

func NewDumpCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Request urgent snapshot",
		Long:  `Request an out-of-band snapshot ahead of the periodic ones.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			s, err := psdk.Dump()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if quiet {
				logOKCmd(*cmd)

				return
			}
			logJSONCmd(*cmd, s)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the snapshot")

	return cmd
}

func logSummaryCmd(cmd cobra.Command, h sdk.Health) {
	line := fmt.Sprintf("%d/%d checks passed", h.Passed, h.Total)
	if h.Passed == h.Total {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", color.GreenString(line))

		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", color.YellowString(line))
}
