/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/parbdy/InputParameters"
	"github.com/notargets/parbdy/memory"
	"github.com/notargets/parbdy/mesh"
	"github.com/notargets/parbdy/parmesh"
	"github.com/notargets/parbdy/partition"
	"github.com/notargets/parbdy/tags"
)

type ReconcileRun struct {
	MeshFile  string
	InputFile string
	Profile   bool
	Perf      bool
	Verbose   bool
}

// RankReport summarizes the reconciliation of one rank
type RankReport struct {
	Rank                        int
	Passes                      []parmesh.ParBdyStats
	Boundary, ParBdy, ParBdyBdy int // Face counts
	Memory                      memory.Report
	GroupHighWater              []int64 // High-water mark of each group mesh
}

// ReconcileCmd represents the reconcile command
var ReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Partition a tetrahedral mesh and reconcile its interface tags",
	Long: `Reads a Gambit neutral (.neu) tetrahedral mesh, distributes it over ranks and
groups, and runs the tag reconciliation passes on all ranks concurrently.
Element groups of the mesh file are the material references.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			rr = &ReconcileRun{}
			ip *InputParameters.ReconcileParameters
			m  *mesh.Mesh
		)
		rr.MeshFile, _ = cmd.Flags().GetString("meshFile")
		rr.InputFile, _ = cmd.Flags().GetString("inputParametersFile")
		rr.Profile, _ = cmd.Flags().GetBool("profile")
		rr.Perf, _ = cmd.Flags().GetBool("perf")
		rr.Verbose, _ = cmd.Flags().GetBool("verbose")
		if ip, err = processReconcileInput(rr); err != nil {
			return
		}
		ip.Print()
		if rr.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		}
		if m, err = mesh.ReadMeshFile(rr.MeshFile); err != nil {
			return
		}
		if rr.Verbose {
			m.PrintStatistics()
		}
		var reports []RankReport
		if reports, err = RunReconcile(m, ip, rr.Perf); err != nil {
			return
		}
		PrintReports(reports)
		return
	},
}

func init() {
	rootCmd.AddCommand(ReconcileCmd)
	flags := ReconcileCmd.Flags()
	flags.StringP("meshFile", "F", "", "Mesh file to read in Gambit (.neu) format")
	flags.StringP("inputParametersFile", "I", "", "YAML file for input parameters like:\n\t- Ranks\n\t- GroupsPerRank\n\t- Method")
	flags.IntP("ranks", "n", 2, "number of ranks")
	flags.IntP("groups", "g", 1, "number of groups per rank")
	flags.StringP("method", "m", "metis", "rank partitioning method, metis or block")
	flags.Bool("freezeSurface", false, "make boundary entities Required|NoSurf")
	flags.IntP("passes", "p", 1, "number of reconciliation passes")
	flags.Bool("check", false, "check edge tag consistency after each pass")
	flags.Bool("profile", false, "write a CPU profile in the current directory")
	flags.Bool("perf", false, "count the instructions of each rank (Linux)")
	flags.BoolP("verbose", "v", false, "print mesh statistics")
	for key, flag := range map[string]string{
		"ranks":         "ranks",
		"groups":        "groups",
		"method":        "method",
		"freezeSurface": "freezeSurface",
		"passes":        "passes",
		"check":         "check",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// processReconcileInput reads the input parameters file if any, then applies
// the values set in the config file or on the command line
func processReconcileInput(rr *ReconcileRun) (ip *InputParameters.ReconcileParameters, err error) {
	if len(rr.MeshFile) == 0 {
		err = fmt.Errorf("must supply a mesh file (-F, --meshFile) in .neu (Gambit neutral file) format")
		return
	}
	ip = InputParameters.NewReconcileParameters()
	if len(rr.InputFile) != 0 {
		var data []byte
		if data, err = ioutil.ReadFile(rr.InputFile); err != nil {
			return
		}
		if err = ip.Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", rr.InputFile, err)
		}
	}
	if viper.IsSet("ranks") {
		ip.Ranks = viper.GetInt("ranks")
	}
	if viper.IsSet("groups") {
		ip.GroupsPerRank = viper.GetInt("groups")
	}
	if viper.IsSet("method") {
		ip.Method = viper.GetString("method")
	}
	if viper.IsSet("freezeSurface") {
		ip.FreezeSurface = viper.GetBool("freezeSurface")
	}
	if viper.IsSet("passes") {
		ip.Passes = viper.GetInt("passes")
	}
	if viper.IsSet("check") {
		ip.CheckEdges = viper.GetBool("check")
	}
	err = ip.Validate()
	return
}

func partitionConfig(ip *InputParameters.ReconcileParameters) partition.Config {
	return partition.Config{
		NumRanks:      ip.Ranks,
		GroupsPerRank: ip.GroupsPerRank,
		Method:        ip.Method,
		Objective:     ip.Objective,
		Imbalance:     ip.Imbalance,
		FreezeSurface: ip.FreezeSurface,
		MemGlobalMax:  ip.MemoryMb << 20,
	}
}

// RunReconcile distributes the mesh and runs the reconciliation passes
func RunReconcile(m *mesh.Mesh, ip *InputParameters.ReconcileParameters, usePerf bool) (reports []RankReport, err error) {
	var (
		cfg = partitionConfig(ip)
		lay partition.Layout
		pms []*parmesh.ParMesh
	)
	if lay, err = partition.NewLayout(m, cfg); err != nil {
		return
	}
	if pms, err = partition.Build(m, lay, cfg); err != nil {
		return
	}
	reports = make([]RankReport, len(pms))
	for pass := 0; pass < ip.Passes; pass++ {
		err = parmesh.RunRanks(pms, func(pm *parmesh.ParMesh) error {
			var stats parmesh.ParBdyStats
			reconcile := func() (err error) {
				stats, err = pm.Reconcile()
				return
			}
			what := fmt.Sprintf("rank %d pass %d", pm.Rank, pass)
			if usePerf {
				if err := countInstructions(what, reconcile); err != nil {
					return err
				}
			} else if err := reconcile(); err != nil {
				return err
			}
			reports[pm.Rank].Passes = append(reports[pm.Rank].Passes, stats)
			if ip.CheckEdges {
				return pm.CheckEdgeTags()
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", pass, err)
		}
	}
	for _, pm := range pms {
		r := &reports[pm.Rank]
		r.Rank = pm.Rank
		counts := pm.TagCount(tags.Boundary, tags.ParBdy, tags.ParBdyBdy)
		r.Boundary, r.ParBdy, r.ParBdyBdy = counts[0], counts[1], counts[2]
		r.Memory = pm.CheckMemory("final")
		for _, acct := range pm.Ledger.Meshes() {
			r.GroupHighWater = append(r.GroupHighWater, acct.Snapshot().HighWater)
		}
	}
	return
}

func PrintReports(reports []RankReport) {
	const mb = 1024. * 1024.
	fmt.Printf("%6s %10s %10s %10s %10s %10s %12s\n",
		"rank", "boundary", "parbdy", "parbdybdy", "local", "remote", "highwater")
	for _, r := range reports {
		var last parmesh.ParBdyStats
		if len(r.Passes) != 0 {
			last = r.Passes[len(r.Passes)-1]
		}
		fmt.Printf("%6d %10d %10d %10d %10d %10d %10.2fMb\n",
			r.Rank, r.Boundary, r.ParBdy, r.ParBdyBdy, last.Phase1Slots, last.Phase2Slots,
			float64(r.Memory.HighWater)/mb)
		if len(r.GroupHighWater) > 1 {
			groups := make([]string, len(r.GroupHighWater))
			for i, hw := range r.GroupHighWater {
				groups[i] = fmt.Sprintf("%.2fMb", float64(hw)/mb)
			}
			fmt.Printf("%6s group high-water: %s\n", "", strings.Join(groups, " "))
		}
		if r.Memory.CurrentExceeded || r.Memory.HighWaterExceeded {
			log.Printf("rank %d exceeded its memory ceiling of %.2fMb", r.Rank, float64(r.Memory.GlobalMax)/mb)
		}
	}
}
