// Command slidectl submits page images for conversion and follows tasks
// through verification to the finished slide bundle.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"bananaslides/internal/client"
)

var (
	serverURL      string
	requestTimeout string
)

var rootCmd = &cobra.Command{
	Use:           "slidectl",
	Short:         "Convert page images into editable slides",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	defaultURL := os.Getenv("BANANA_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "API base URL")
	rootCmd.PersistentFlags().StringVar(&requestTimeout, "request-timeout", "30s", "timeout for a single HTTP request")

	rootCmd.AddCommand(submitCmd, statusCmd, waitCmd, confirmCmd, verifyCmd, fetchCmd)
}

func newClient() (*client.Client, error) {
	d, err := parseDuration("request-timeout", requestTimeout)
	if err != nil {
		return nil, err
	}
	return client.New(serverURL, d), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
