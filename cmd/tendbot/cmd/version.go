package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tendbot CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tendbot version %s\n", version)
		fmt.Println("An automated position tender for a fixed futures trade plan")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
