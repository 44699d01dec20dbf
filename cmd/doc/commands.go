package doc

import (
	"fmt"

	"github.com/lweidner/akv/lib/document"
	"github.com/spf13/cobra"
)

var (
	docFlags  uint32
	docExpiry uint64
	docCas    uint64

	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Reads the document for an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			result, found, err := rpcColl.Get(id, document.GetOptions{})
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("id=%s, found=false\n", id)
				return nil
			}
			fmt.Printf("id=%s, found=true, flags=%d, cas=%d, content=%s\n", id, result.Flags, result.Cas, result.Content)
			return nil
		},
	}
	upsertCmd = &cobra.Command{
		Use:   "upsert [id] [content]",
		Short: "Stores a document unconditionally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rpcColl.Upsert(args[0], []byte(args[1]), docFlags, document.StoreOptions{
				Expiry: docExpiry,
			})
			if err != nil {
				return err
			}
			fmt.Printf("upserted, cas=%d\n", result.Cas)
			return nil
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [id] [content]",
		Short: "Stores a document only if the id does not exist yet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rpcColl.Insert(args[0], []byte(args[1]), docFlags, document.StoreOptions{
				Expiry: docExpiry,
			})
			if err != nil {
				return err
			}
			fmt.Printf("inserted, cas=%d\n", result.Cas)
			return nil
		},
	}
	replaceCmd = &cobra.Command{
		Use:   "replace [id] [content]",
		Short: "Stores a document only if the id already exists",
		Long:  "Stores a document only if the id already exists. With --cas the stored CAS must match for the replace to take effect.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rpcColl.Replace(args[0], []byte(args[1]), docFlags, document.StoreOptions{
				Expiry: docExpiry,
				Cas:    docCas,
			})
			if err != nil {
				return err
			}
			fmt.Printf("replaced, cas=%d\n", result.Cas)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [id]",
		Short: "Removes a document",
		Long:  "Removes a document. With --cas the stored CAS must match for the remove to take effect.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rpcColl.Remove(args[0], document.RemoveOptions{
				Cas: docCas,
			})
			if err != nil {
				return err
			}
			fmt.Printf("removed, cas=%d\n", result.Cas)
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [id]",
		Short: "Checks if a document exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			found, err := rpcColl.Exists(id)
			if err != nil {
				return err
			}
			fmt.Printf("id=%s, found=%t\n", id, found)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints metadata about the engine backing the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcColl.GetEngineInfo()
			if err != nil {
				return err
			}
			fmt.Printf("engine=%s, size=%d bytes, features=%v\n", info.EngineType, info.SizeBytes, info.SupportedFeatures)
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{upsertCmd, insertCmd, replaceCmd} {
		cmd.Flags().Uint32Var(&docFlags, "flags", 0, "Application flags stored with the document")
		cmd.Flags().Uint64Var(&docExpiry, "expiry", 0, "Expiry in logical ticks (0 for no expiry)")
	}
	replaceCmd.Flags().Uint64Var(&docCas, "cas", 0, "CAS guard (0 to disable)")
	removeCmd.Flags().Uint64Var(&docCas, "cas", 0, "CAS guard (0 to disable)")
}
