// Command sponsorgw runs the sponsored-transaction gateway and a small client
// for reading the counter and timing sponsorships against a running gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile    string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "sponsorgw",
	Short: "Privy sponsored transaction gateway",
	Long: `Relays gas-sponsored increment() calls on the test counter contract
through Privy delegated wallet sessions, and measures them from the client side.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
