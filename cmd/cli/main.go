package main

import (
	"log"
	"time"

	"github.com/absmach/profiler/cli"
	"github.com/absmach/profiler/pkg/sdk"
	"github.com/spf13/cobra"
)

func main() {
	var (
		profilerURL = cli.DefProfilerURL
		tlsVerify   = cli.DefTLSVerification
		timeout     = 5 * time.Second
	)

	rootCmd := &cobra.Command{
		Use:   "profiler-cli",
		Short: "Profiler CLI",
		Long:  `Profiler CLI queries a running profiler for health, snapshots and power state.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			s := sdk.NewSDK(sdk.Config{
				ProfilerURL:     profilerURL,
				TLSVerification: tlsVerify,
				Timeout:         timeout,
			})
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&profilerURL, "url", "u", profilerURL, "profiler HTTP address")
	rootCmd.PersistentFlags().BoolVar(&tlsVerify, "tls-verify", tlsVerify, "verify TLS certificates")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "request timeout")

	rootCmd.AddCommand(
		cli.NewHealthCmd(),
		cli.NewSnapshotCmd(),
		cli.NewPowerCmd(),
		cli.NewDumpCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
