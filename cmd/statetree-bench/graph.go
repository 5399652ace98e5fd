package main

import (
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/aerius-labs/statetree"
)

func graphCommand() *cobra.Command {
	var (
		keys int
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "graph [out-file]",
		Short: "render a small generated tree in graphviz dot format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := rand.New(rand.NewSource(seed))
			tree := statetree.NewTree(nil)
			for i := 0; i < keys; i++ {
				key := make([]byte, 2)
				value := make([]byte, 4)
				rng.Read(key)
				rng.Read(value)
				if err := tree.Set(key, value); err != nil {
					return err
				}
			}
			if _, _, err := tree.SaveVersion(); err != nil {
				return err
			}
			if err := os.WriteFile(args[0], []byte(statetree.RenderDotGraph(tree)), 0o644); err != nil {
				return err
			}
			log.Info().Msgf("wrote %d leaves to %s", tree.Size(), args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&keys, "keys", 12, "number of random keys to insert")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for key generation")
	return cmd
}
