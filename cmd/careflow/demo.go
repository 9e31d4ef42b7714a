package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/stubapi"
)

func demoCmd() *cobra.Command {
	var addr string
	var vlmSeconds int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local seeded backend stub",
		Long: "Starts the in-memory backend with demo accounts (admin/admin123,\n" +
			"dr.chen/doctor123, nurse.okafor/nurse123) and sample data. Point the\n" +
			"client at it with API_BASE_URL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			stub := stubapi.New(stubapi.Config{
				VLMLatency: time.Duration(vlmSeconds) * time.Second,
				Logger:     logger,
			})
			stub.SeedDemo()

			fmt.Printf("Demo backend listening on %s\n", addr)
			fmt.Printf("  export API_BASE_URL=http://%s\n", addr)
			return stub.Start(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().IntVar(&vlmSeconds, "vlm-seconds", 8, "simulated analysis duration")
	return cmd
}
