package storage

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/growth"
)

type ExportData struct {
	Run       RunMetadata      `json:"run"`
	Scenarios []ExportScenario `json:"scenarios"`
}

type ExportScenario struct {
	Name       string         `json:"name"`
	Means      []ExportMean   `json:"means"`
	Effects    []ExportEffect `json:"effects"`
	Trajectory []growth.Row   `json:"trajectory,omitempty"`
}

type ExportMean struct {
	T      int          `json:"t"`
	Group  growth.Group `json:"group"`
	Mean   float64      `json:"mean"`
	StdDev float64      `json:"std"`
	N      int          `json:"n"`
}

// ExportEffect carries an undefined d as null, which encoding/json cannot
// do for a NaN float.
type ExportEffect struct {
	T          int      `json:"t"`
	D          *float64 `json:"cohens_d"`
	NTreatment int      `json:"n_treatment"`
	NControl   int      `json:"n_control"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// BuildExport assembles a stored run into a JSON document. Trajectories are
// included only when withRows is set.
func BuildExport(meta RunMetadata, traj []TrajectoryRow, effects []EffectRow, withRows bool) ExportData {
	data := ExportData{Run: meta}
	for _, sc := range meta.Scenarios {
		rows := Rows(traj, sc.Name)
		es := ExportScenario{Name: sc.Name}

		for _, m := range effect.GroupMeans(rows) {
			es.Means = append(es.Means, ExportMean{
				T: m.T, Group: m.Group, Mean: m.Mean, StdDev: m.StdDev, N: m.N,
			})
		}
		for _, e := range Effects(effects, sc.Name) {
			es.Effects = append(es.Effects, ExportEffect{
				T: e.T, D: nullable(e.D), NTreatment: e.NTreatment, NControl: e.NControl,
			})
		}
		if withRows {
			es.Trajectory = rows
		}
		data.Scenarios = append(data.Scenarios, es)
	}
	return data
}

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
