package cmd

import (
	"fmt"
	"os"

	"github.com/lweidner/akv/cmd/doc"
	"github.com/lweidner/akv/cmd/lock"
	"github.com/lweidner/akv/cmd/serve"
	"github.com/lweidner/akv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.2"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "akv",
		Short: "distributed document store",
		Long: fmt.Sprintf(`akv (v%s)

A distributed, consistent document store written in Go,
leveraging RAFT consensus for linearizability and fault tolerance.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of akv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("akv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(doc.DocumentCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
