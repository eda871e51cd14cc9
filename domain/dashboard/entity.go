package dashboard

import "math"

// Counts are the raw aggregates of one project.
type Counts struct {
	// TestCases by status.
	TestCases  map[string]int64
	Priorities map[string]int64

	// Automated counts test cases with an active automation config.
	Automated int64

	// Runs by run status.
	Runs map[string]int64
}

// Dashboard GET /api/dashboard response.
type Dashboard struct {
	ProjectID  string          `json:"projectId"`
	TestCases  TestCaseStats   `json:"testCases"`
	Automation AutomationStats `json:"automation"`
	Runs       RunStats        `json:"runs"`
}

type TestCaseStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByPriority map[string]int64 `json:"byPriority"`
}

type AutomationStats struct {
	Automated int64   `json:"automated"`
	Manual    int64   `json:"manual"`
	Coverage  float64 `json:"coverage"`
}

type RunStats struct {
	Total    int64   `json:"total"`
	Passed   int64   `json:"passed"`
	Failed   int64   `json:"failed"`
	Running  int64   `json:"running"`
	PassRate float64 `json:"passRate"`
}

// Summarize turns raw counts into the dashboard. Percentages are rounded to
// one decimal and are 0 when there is nothing to divide by.
func Summarize(projectID string, c Counts) *Dashboard {
	d := &Dashboard{
		ProjectID: projectID,
		TestCases: TestCaseStats{
			ByStatus:   copyCounts(c.TestCases),
			ByPriority: copyCounts(c.Priorities),
		},
	}
	for _, n := range c.TestCases {
		d.TestCases.Total += n
	}

	automated := min(c.Automated, d.TestCases.Total)
	d.Automation = AutomationStats{
		Automated: automated,
		Manual:    d.TestCases.Total - automated,
		Coverage:  percent(automated, d.TestCases.Total),
	}

	d.Runs = RunStats{
		Passed:  c.Runs["passed"],
		Failed:  c.Runs["failed"],
		Running: c.Runs["running"],
	}
	for _, n := range c.Runs {
		d.Runs.Total += n
	}
	d.Runs.PassRate = percent(d.Runs.Passed, d.Runs.Passed+d.Runs.Failed)
	return d
}

func percent(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
