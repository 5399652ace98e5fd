package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aerius-labs/statetree/bench"
)

// smallGenerators keeps the per-store key and value shapes of the full
// presets but caps the workload at one million operations so generated
// changeset directories stay a reasonable size.
func smallGenerators(seed, versions int64) []bench.ChangesetGenerator {
	gens := []bench.ChangesetGenerator{
		bench.BankLikeGenerator(seed, versions),
		bench.StakingLikeGenerator(seed, versions),
		bench.LockupLikeGenerator(seed, versions),
	}
	for i := range gens {
		gens[i].InitialSize = 10_000
		gens[i].FinalSize = 200_000
		gens[i].ChangePerVersion = int(1_000_000 / versions)
	}
	return gens
}

func genCommand() *cobra.Command {
	var (
		versions int64
		seed     int64
		profile  string
	)
	cmd := &cobra.Command{
		Use:   "gen [out-dir]",
		Short: "generate changeset files for later replay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if versions < 1 {
				return fmt.Errorf("versions must be at least 1")
			}
			var gens []bench.ChangesetGenerator
			switch profile {
			case "small":
				gens = smallGenerators(seed, versions)
			case "accounts":
				gens = []bench.ChangesetGenerator{bench.AccountsLikeGenerator(seed, versions)}
			default:
				return fmt.Errorf("unknown generator profile: %s", profile)
			}
			return bench.GenerateChangesets(args[0], gens...)
		},
	}
	cmd.Flags().Int64Var(&versions, "versions", 100, "number of versions to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the data generators")
	cmd.Flags().StringVar(&profile, "profile", "small", "data generation profile to use (small|accounts)")
	return cmd
}
