package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidateDefinition checks a deployment definition and, when it is valid,
// constructs the Deployment it describes. Validation is pure: it collects
// every problem found and never partially constructs a deployment on
// failure.
func ValidateDefinition(def *Definition, registry *Registry) (*Deployment, error) {
	var problems []string

	if def.Name == "" {
		problems = append(problems, "deployment name is required")
	}
	mode := def.Mode
	if mode == "" {
		mode = ModeSequential
	}
	if mode != ModeSequential && mode != ModeParallel {
		problems = append(problems, fmt.Sprintf("unknown execution mode %q", def.Mode))
	}
	if len(def.Stages) == 0 {
		problems = append(problems, "at least one stage is required")
	}

	seen := make(map[string]bool, len(def.Stages))
	for _, sd := range def.Stages {
		if sd.Name == "" {
			problems = append(problems, "stage name is required")
			continue
		}
		if seen[sd.Name] {
			problems = append(problems, fmt.Sprintf("duplicate stage name %q", sd.Name))
		}
		seen[sd.Name] = true
	}

	for _, sd := range def.Stages {
		for _, dep := range sd.Dependencies {
			if dep == sd.Name {
				problems = append(problems, fmt.Sprintf("stage %q depends on itself", sd.Name))
			} else if !seen[dep] {
				problems = append(problems, fmt.Sprintf("stage %q depends on unknown stage %q", sd.Name, dep))
			}
		}
		if sd.Strategy == "" {
			problems = append(problems, fmt.Sprintf("stage %q has no strategy", sd.Name))
		} else if !registry.Registered(sd.Strategy) {
			problems = append(problems, fmt.Sprintf("no executor registered for strategy %q (stage %q)", sd.Strategy, sd.Name))
		}
		problems = append(problems, validateGates(sd)...)
	}

	if dependencyCycle(def.Stages) {
		problems = append(problems, "stage dependency graph contains a cycle")
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	stages := make([]*Stage, 0, len(def.Stages))
	for _, sd := range def.Stages {
		rollback := true
		if sd.RollbackOnFailure != nil {
			rollback = *sd.RollbackOnFailure
		}
		gates := make([]Gate, 0, len(sd.Gates))
		for _, gd := range sd.Gates {
			gates = append(gates, Gate{
				Type:         gd.Type,
				Timeout:      gd.Timeout.Std(),
				Approvers:    append([]string(nil), gd.Approvers...),
				ScheduleTime: gd.ScheduleTime,
				Metrics:      append([]string(nil), gd.Metrics...),
				Thresholds:   copyThresholds(gd.Thresholds),
				PollInterval: gd.PollInterval.Std(),
			})
		}
		stages = append(stages, &Stage{
			Name:              sd.Name,
			Strategy:          sd.Strategy,
			Config:            sd.Config,
			Gates:             gates,
			Dependencies:      append([]string(nil), sd.Dependencies...),
			RollbackOnFailure: rollback,
			Status:            StagePending,
		})
	}

	return &Deployment{
		ID:          uuid.New(),
		Name:        def.Name,
		Version:     def.Version,
		Mode:        mode,
		MaxDuration: def.MaxDuration.Std(),
		Stages:      stages,
		Status:      DeploymentPending,
		CreatedAt:   time.Now(),
	}, nil
}

func validateGates(sd StageDefinition) []string {
	var problems []string
	for i, gd := range sd.Gates {
		switch gd.Type {
		case GateManual, GateAutomatic:
		case GateScheduled:
			if gd.ScheduleTime.IsZero() {
				problems = append(problems, fmt.Sprintf("stage %q gate %d: scheduled gate requires schedule_time", sd.Name, i))
			}
		case GateMetricBased:
			if len(gd.Thresholds) == 0 {
				problems = append(problems, fmt.Sprintf("stage %q gate %d: metric gate must declare at least one threshold", sd.Name, i))
			}
		default:
			problems = append(problems, fmt.Sprintf("stage %q gate %d: unknown gate type %q", sd.Name, i, gd.Type))
		}
	}
	return problems
}

// dependencyCycle runs Kahn's algorithm over the declared dependency edges.
// Edges to unknown stages are skipped; they are reported separately.
func dependencyCycle(stages []StageDefinition) bool {
	known := make(map[string]bool, len(stages))
	for _, sd := range stages {
		known[sd.Name] = true
	}

	indegree := make(map[string]int, len(stages))
	dependents := make(map[string][]string, len(stages))
	for _, sd := range stages {
		if _, ok := indegree[sd.Name]; !ok {
			indegree[sd.Name] = 0
		}
		for _, dep := range sd.Dependencies {
			if !known[dep] || dep == sd.Name {
				continue
			}
			indegree[sd.Name]++
			dependents[dep] = append(dependents[dep], sd.Name)
		}
	}

	queue := make([]string, 0, len(indegree))
	for name, n := range indegree {
		if n == 0 {
			queue = append(queue, name)
		}
	}

	processed := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return processed < len(indegree)
}

func copyThresholds(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
