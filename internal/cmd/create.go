package cmd

import (
	"fmt"

	"github.com/instant-demo/demopool/internal/pool"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an instance for a client, or pre-warm one",
	Long: `Create returns a ready-to-use instance for the given client address.

An existing prepared instance is grabbed when available, avoiding the
template copy entirely; otherwise a fresh copy is made under the shared
template lock. With --prepare the instance is added to the prepared pool
instead and assigned to nobody.`,
	RunE: runCreate,
}

var (
	createClient  string
	createPrepare bool
)

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createClient, "client", "", "Client network address the instance is created for")
	createCmd.Flags().BoolVar(&createPrepare, "prepare", false, "Add a prepared instance to the pool instead of assigning one")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if !createPrepare && createClient == "" {
		return fmt.Errorf("--client is required unless --prepare is given")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	inst, err := a.mgr.Create(cmd.Context(), createClient, createPrepare)
	if err != nil {
		return err
	}

	fmt.Printf("Name:    %s\n", inst.Name())
	fmt.Printf("Root:    %s\n", inst.Root())
	if createPrepare {
		fmt.Println("State:   prepared")
	} else {
		fmt.Printf("Client:  %s\n", pool.ClientHash(createClient))
		fmt.Printf("Expires: %s\n", inst.ExpiresIn())
	}
	return nil
}
