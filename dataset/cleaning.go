package dataset

import (
	"fmt"
	"sync"

	"flightdelay/model"
)

// Rule validates one flight record before it enters training.
type Rule interface {
	Apply(rec model.FlightRecord) error
	Name() string
}

// CleaningStats counts how training rows fared against the rules.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
}

// Cleaner runs every rule against a record; the first failure rejects it.
// Rejected rows are counted and dropped, not fatal: training CSVs are
// expected to be mostly clean but not perfect.
type Cleaner struct {
	rules []Rule

	mu    sync.Mutex
	stats CleaningStats
}

func NewCleaner() *Cleaner {
	c := &Cleaner{stats: CleaningStats{Issues: make(map[string]int64)}}
	c.AddRule(MonthRule{})
	c.AddRule(FlightTypeRule{})
	c.AddRule(OperatorRule{})
	c.AddRule(ScheduleRule{})
	return c
}

func (c *Cleaner) AddRule(rule Rule) {
	c.rules = append(c.rules, rule)
}

// Check validates one record and updates the counters.
func (c *Cleaner) Check(rec model.FlightRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalProcessed++
	for _, rule := range c.rules {
		if err := rule.Apply(rec); err != nil {
			c.stats.Rejected++
			c.stats.Issues[rule.Name()]++
			return err
		}
	}
	c.stats.Passed++
	return nil
}

// RejectRaw counts a row that failed before it could become a record, for
// example an unparseable month cell.
func (c *Cleaner) RejectRaw(issue string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalProcessed++
	c.stats.Rejected++
	c.stats.Issues[issue]++
}

func (c *Cleaner) Stats() CleaningStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Issues = make(map[string]int64, len(c.stats.Issues))
	for key, value := range c.stats.Issues {
		stats.Issues[key] = value
	}
	return stats
}

// MonthRule requires MES in [1, 12].
type MonthRule struct{}

func (MonthRule) Name() string { return "month_range" }

func (MonthRule) Apply(rec model.FlightRecord) error {
	if rec.Mes < 1 || rec.Mes > 12 {
		return &model.ValidationError{Field: "MES", Message: fmt.Sprintf("must be between 1 and 12, got %d", rec.Mes)}
	}
	return nil
}

// FlightTypeRule requires TIPOVUELO to be I or N.
type FlightTypeRule struct{}

func (FlightTypeRule) Name() string { return "flight_type" }

func (FlightTypeRule) Apply(rec model.FlightRecord) error {
	if rec.TipoVuelo != "I" && rec.TipoVuelo != "N" {
		return &model.ValidationError{Field: "TIPOVUELO", Message: fmt.Sprintf("must be I or N, got %q", rec.TipoVuelo)}
	}
	return nil
}

// OperatorRule requires a non-empty airline name.
type OperatorRule struct{}

func (OperatorRule) Name() string { return "operator" }

func (OperatorRule) Apply(rec model.FlightRecord) error {
	if rec.Opera == "" {
		return &model.ValidationError{Field: "OPERA", Message: "must not be empty"}
	}
	return nil
}

// ScheduleRule requires both timestamps to parse; training rows without an
// actual departure time cannot produce a label.
type ScheduleRule struct{}

func (ScheduleRule) Name() string { return "schedule" }

func (ScheduleRule) Apply(rec model.FlightRecord) error {
	if _, err := model.PeriodOfDay(rec.FechaI); err != nil {
		return err
	}
	if _, err := model.MinDiff(rec); err != nil {
		return err
	}
	return nil
}
