package batch

import (
	"fmt"

	"github.com/banshee-data/sillywalks/internal/db"
)

// FromSimulations turns simulation requests stored in the bookkeeping
// database into jobs. The stored parameters are used as the job's Preset;
// the goal is the stored label, or "simulation-<id>" when it has none.
func FromSimulations(sims []*db.Simulation) []Job {
	jobs := make([]Job, 0, len(sims))
	for _, sim := range sims {
		spec := sim.Specific
		j := Job{
			Line:      int(sim.ID),
			Goal:      spec.Label,
			NrRuns:    sim.NRuns,
			Method:    spec.Method,
			PreNoise:  sim.SigmaPre,
			PostNoise: sim.SigmaPost,
			MapPath:   sim.MapPath,
			Preset:    &spec,
		}
		if j.Goal == "" {
			j.Goal = fmt.Sprintf("simulation-%d", sim.ID)
		}
		if p := spec.Interpolation; p != nil {
			j.Kind, j.Factor = p.Kind, p.Factor
		}
		if p := spec.Simulation; p != nil {
			j.Kind = p.CovType
		}
		j.SeedX, j.SeedY = sim.Trace.XY()
		jobs = append(jobs, j)
	}
	return jobs
}
