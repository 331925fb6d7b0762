package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// AllocationTask is one unit of work to place. Effort is in utilization
// points; zero or negative values take the default and values above
// maxTaskEffort are rejected.
type AllocationTask struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Priority        int     `json:"priority"`
	Effort          float64 `json:"effort,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
}

// AllocationConstraints narrows the provider pool and sets the bottleneck level.
type AllocationConstraints struct {
	AvailableProviders  []string `json:"available_providers,omitempty"`
	BottleneckThreshold float64  `json:"bottleneck_threshold,omitempty"`
}

// AllocationRequest is a batch of tasks to place.
type AllocationRequest struct {
	Tasks       []AllocationTask      `json:"tasks"`
	Constraints AllocationConstraints `json:"constraints"`
}

// AllocationMetrics summarises the batch.
type AllocationMetrics struct {
	TotalTasks         int      `json:"total_tasks"`
	AssignedTasks      int      `json:"assigned_tasks"`
	AverageUtilization float64  `json:"average_utilization"`
	MaxUtilization     float64  `json:"max_utilization"`
	Bottlenecks        []string `json:"bottlenecks"`
}

// AllocationResult is the placement of every task in the batch.
type AllocationResult struct {
	Assignments     []models.TaskAssignment `json:"assignments"`
	Utilization     map[string]float64      `json:"utilization"`
	Metrics         AllocationMetrics       `json:"metrics"`
	Recommendations []string                `json:"recommendations"`
}

// AllocateResources places tasks on providers, highest priority first. The
// utilization map lives only for this call. Start times approximate queueing
// delay from the utilization a provider already carries.
func (e *Engine) AllocateResources(req AllocationRequest) (*AllocationResult, error) {
	if len(req.Tasks) > maxAllocationTasks {
		return nil, fmt.Errorf("%w: %d tasks exceeds the limit of %d", ErrInvalidRequest, len(req.Tasks), maxAllocationTasks)
	}
	for i, task := range req.Tasks {
		if math.IsNaN(task.Effort) || task.Effort > maxTaskEffort {
			return nil, fmt.Errorf("%w: tasks[%d].effort %v must be at most %v", ErrInvalidRequest, i, task.Effort, maxTaskEffort)
		}
	}
	threshold := req.Constraints.BottleneckThreshold
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: bottleneck_threshold must be finite", ErrInvalidRequest)
	}

	now := e.now().UTC()
	if threshold <= 0 {
		threshold = defaultBottleneckLevel
	}

	pool := e.registry.List()
	if len(req.Constraints.AvailableProviders) > 0 {
		allowed := e.registry.Filter(req.Constraints.AvailableProviders)
		filtered := pool[:0]
		for _, p := range pool {
			if containsString(allowed, p.ID) {
				filtered = append(filtered, p)
			}
		}
		pool = filtered
	}

	tasks := make([]AllocationTask, len(req.Tasks))
	copy(tasks, req.Tasks)
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = fmt.Sprintf("task-%d", i+1)
		}
		if tasks[i].Effort <= 0 {
			tasks[i].Effort = defaultTaskEffort
		}
		if tasks[i].DurationMinutes <= 0 {
			tasks[i].DurationMinutes = defaultTaskDuration
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})

	utilization := make(map[string]float64)
	result := &AllocationResult{
		Assignments: make([]models.TaskAssignment, 0, len(tasks)),
		Utilization: utilization,
	}

	for _, task := range tasks {
		pid := e.registry.DefaultID()
		bestScore := math.Inf(-1)
		for _, p := range pool {
			if !taskMatches(task, p.Capabilities) {
				continue
			}
			score := allocWeightFactor*p.PriorityWeight + allocHeadroomFactor*(1-utilization[p.ID]/100)
			if score > bestScore {
				pid, bestScore = p.ID, score
			}
		}

		before := utilization[pid]
		delay := time.Duration(math.Floor(before/10)) * startDelayPerUtilBucket * time.Minute
		utilization[pid] = before + task.Effort

		result.Assignments = append(result.Assignments, models.TaskAssignment{
			TaskID:                   task.ID,
			TaskName:                 task.Name,
			AssignedProviderID:       pid,
			EstimatedDurationMinutes: task.DurationMinutes,
			Priority:                 task.Priority,
			ComputedStartTime:        now.Add(delay),
		})
	}

	result.Metrics = allocationMetrics(len(tasks), result.Assignments, utilization, threshold)
	result.Recommendations = allocationRecommendations(result.Metrics)
	return result, nil
}

// taskMatches reports whether a capability relates to the task type or name.
func taskMatches(task AllocationTask, capabilities []string) bool {
	typ := normalizeText(task.Type)
	name := normalizeText(task.Name)
	for _, c := range capabilities {
		c = normalizeText(c)
		if c == "" {
			continue
		}
		if typ != "" && (strings.Contains(c, typ) || strings.Contains(typ, c)) {
			return true
		}
		if name != "" && strings.Contains(name, c) {
			return true
		}
	}
	return false
}

func allocationMetrics(total int, assignments []models.TaskAssignment, utilization map[string]float64, threshold float64) AllocationMetrics {
	m := AllocationMetrics{
		TotalTasks:    total,
		AssignedTasks: len(assignments),
		Bottlenecks:   []string{},
	}
	if len(utilization) == 0 {
		return m
	}
	var sum float64
	for pid, u := range utilization {
		sum += u
		if u > m.MaxUtilization {
			m.MaxUtilization = u
		}
		if u >= threshold {
			m.Bottlenecks = append(m.Bottlenecks, pid)
		}
	}
	m.AverageUtilization = sum / float64(len(utilization))
	sort.Strings(m.Bottlenecks)
	return m
}

func allocationRecommendations(m AllocationMetrics) []string {
	var recs []string
	if len(m.Bottlenecks) > 0 {
		recs = append(recs, "Redistribute work from: "+strings.Join(m.Bottlenecks, ", "))
	}
	if m.MaxUtilization > 100 {
		recs = append(recs, "Capacity exceeded; defer lower-priority tasks")
	}
	if m.AssignedTasks > 0 && m.AverageUtilization < lowUtilizationLevel {
		recs = append(recs, "Spare capacity available for proactive initiatives")
	}
	if len(recs) == 0 {
		recs = append(recs, "Allocation is balanced")
	}
	return recs
}
