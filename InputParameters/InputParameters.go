package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters of a reconciliation run obtained from the YAML input file
type ReconcileParameters struct {
	Title         string  `json:"Title"`
	Ranks         int     `json:"Ranks"`
	GroupsPerRank int     `json:"GroupsPerRank"`
	Method        string  `json:"Method"`    // "metis" or "block"
	Objective     string  `json:"Objective"` // METIS objective, "cut" or "vol"
	Imbalance     float64 `json:"Imbalance"`
	FreezeSurface bool    `json:"FreezeSurface"`
	MemoryMb      int64   `json:"MemoryMb"` // Memory ceiling of each rank
	Passes        int     `json:"Passes"`
	CheckEdges    bool    `json:"CheckEdges"`
}

func NewReconcileParameters() *ReconcileParameters {
	return &ReconcileParameters{
		Title:         "Interface tag reconciliation",
		Ranks:         2,
		GroupsPerRank: 1,
		Method:        "metis",
		Objective:     "vol",
		Imbalance:     0.05,
		MemoryMb:      512,
		Passes:        1,
	}
}

// Parse overlays the values found in data on the current ones
func (ip *ReconcileParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	return ip.Validate()
}

func (ip *ReconcileParameters) Validate() error {
	switch {
	case ip.Ranks < 1:
		return fmt.Errorf("Ranks must be at least 1, have %d", ip.Ranks)
	case ip.GroupsPerRank < 1:
		return fmt.Errorf("GroupsPerRank must be at least 1, have %d", ip.GroupsPerRank)
	case ip.Method != "metis" && ip.Method != "block":
		return fmt.Errorf("Method must be metis or block, have %q", ip.Method)
	case ip.Objective != "cut" && ip.Objective != "vol":
		return fmt.Errorf("Objective must be cut or vol, have %q", ip.Objective)
	case ip.MemoryMb < 1:
		return fmt.Errorf("MemoryMb must be positive, have %d", ip.MemoryMb)
	case ip.Passes < 1:
		return fmt.Errorf("Passes must be at least 1, have %d", ip.Passes)
	}
	return nil
}

func (ip *ReconcileParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Ranks\n", ip.Ranks)
	fmt.Printf("[%d]\t\t\t\t= Groups per rank\n", ip.GroupsPerRank)
	fmt.Printf("[%s]\t\t\t= Partitioning method\n", ip.Method)
	if ip.Method == "metis" {
		fmt.Printf("[%s]\t\t\t= METIS objective\n", ip.Objective)
		fmt.Printf("%8.5f\t\t= Imbalance\n", ip.Imbalance)
	}
	fmt.Printf("[%v]\t\t\t= Freeze surface\n", ip.FreezeSurface)
	fmt.Printf("[%d]\t\t\t\t= Memory per rank (Mb)\n", ip.MemoryMb)
	fmt.Printf("[%d]\t\t\t\t= Passes\n", ip.Passes)
}
