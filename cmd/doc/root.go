package doc

import (
	"github.com/lweidner/akv/cmd/util"
	"github.com/lweidner/akv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcColl *client.Collection

	// DocumentCommands represents the doc command group
	DocumentCommands = &cobra.Command{
		Use:               "doc",
		Short:             "Perform document operations",
		PersistentPreRunE: setupDocClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the doc command
	util.SetupRPCClientFlags(DocumentCommands)

	// Set default shard ID for document operations (different from Lock default)
	DocumentCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(upsertCmd)
	DocumentCommands.AddCommand(insertCmd)
	DocumentCommands.AddCommand(replaceCmd)
	DocumentCommands.AddCommand(removeCmd)
	DocumentCommands.AddCommand(existsCmd)
	DocumentCommands.AddCommand(infoCmd)
	DocumentCommands.AddCommand(perfTestCmd)
}

// setupDocClient initializes the RPC collection client
func setupDocClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the collection client
	rpcColl, err = client.NewRPCCollection(
		shardId,
		*config,
		t,
		s,
	)

	return err
}
