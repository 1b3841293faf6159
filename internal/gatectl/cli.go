package gatectl

import (
	"fmt"

	"github.com/spf13/cobra"

	"infergate/internal/keystore"
)

// BuildRootCmd constructs the gatectl command tree.
func BuildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatectl",
		Short:         "Administer an infergate deployment: API keys and smoke checks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildKeysCmd())
	root.AddCommand(buildCheckCmd())
	return root
}

// buildKeysCmd manages a file-backed credential set. HTTP and exec secret
// sources are owned by their remote store; mutations here apply to the file
// source only.
func buildKeysCmd() *cobra.Command {
	var file string

	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage the API key file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("keys requires a subcommand: init|add|remove|rotate|list")
		},
	}
	keys.PersistentFlags().StringVar(&file, "file", "api-keys.json", "Path to the key file (JSON name->key)")

	initCmd := &cobra.Command{
		Use:     "init",
		Short:   "Create an empty key file",
		Example: "  gatectl keys init --file api-keys.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keystore.InitKeyFile(file); err != nil {
				return err
			}
			fmt.Printf("created %s with an empty key set\n", file)
			return nil
		},
	}

	add := &cobra.Command{
		Use:     "add NAME",
		Short:   "Generate and add a new API key",
		Example: "  gatectl keys add service-a",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keystore.AddKey(file, args[0])
			if err != nil {
				return err
			}
			printNewKey(args[0], k)
			return nil
		},
	}

	rotate := &cobra.Command{
		Use:     "rotate NAME",
		Short:   "Replace the key for an existing name",
		Example: "  gatectl keys rotate service-a",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keystore.RotateKey(file, args[0])
			if err != nil {
				return err
			}
			printNewKey(args[0], k)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove NAME",
		Short:   "Remove an API key",
		Example: "  gatectl keys remove service-a",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keystore.RemoveKey(file, args[0]); err != nil {
				return err
			}
			fmt.Printf("removed key %q\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:     "list",
		Short:   "List key names (values are never printed)",
		Example: "  gatectl keys list",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := keystore.ListKeys(file)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("no API keys found")
				return nil
			}
			fmt.Printf("API keys (%d total):\n", len(names))
			for i, n := range names {
				fmt.Printf("  %d. %s\n", i+1, n)
			}
			return nil
		},
	}

	keys.AddCommand(initCmd, add, rotate, remove, list)
	return keys
}

func printNewKey(name, key string) {
	fmt.Printf("added API key: %s\n\n", name)
	fmt.Printf("API key: %s\n\n", key)
	fmt.Println("store this key securely, it will not be shown again")
	fmt.Printf("use it in requests with header: %s: %s\n", "X-API-Key", key)
}
