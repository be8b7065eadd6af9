package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/salesforecast/dataset"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// DefaultIQRMultiplier is the Tukey fence multiplier.
const DefaultIQRMultiplier = 1.5

// Cleaner imputes missing cells and caps numeric outliers in place.
//
// Numeric columns get their median, categorical columns their mode. Every
// numeric column, the target included, is then clamped to
// [Q1 - k*IQR, Q3 + k*IQR]. Rows are never dropped.
type Cleaner struct {
	multiplier float64
	logger     log.Logger
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithIQRMultiplier sets the fence multiplier k.
func WithIQRMultiplier(k float64) CleanerOption {
	return func(c *Cleaner) {
		c.multiplier = k
	}
}

// WithCleanerLogger sets the logger used for per-column reports.
func WithCleanerLogger(l log.Logger) CleanerOption {
	return func(c *Cleaner) {
		c.logger = l
	}
}

// NewCleaner creates a Cleaner.
func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{multiplier: DefaultIQRMultiplier}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("preprocessing")
	}
	return c
}

// ColumnReport describes what the cleaner changed in one column.
type ColumnReport struct {
	Column       string  `json:"column"`
	Kind         string  `json:"kind"`
	Imputed      int     `json:"imputed"`
	FillValue    float64 `json:"fill_value,omitempty"`
	FillCategory string  `json:"fill_category,omitempty"`
	Q1           float64 `json:"q1,omitempty"`
	Q3           float64 `json:"q3,omitempty"`
	Lower        float64 `json:"lower_fence,omitempty"`
	Upper        float64 `json:"upper_fence,omitempty"`
	Clipped      int     `json:"clipped"`
}

// CleaningReport summarizes one Clean call.
type CleaningReport struct {
	Rows         int            `json:"rows"`
	NullsBefore  int            `json:"nulls_before"`
	NullsAfter   int            `json:"nulls_after"`
	TotalClipped int            `json:"total_clipped"`
	Columns      []ColumnReport `json:"columns"`
}

// Clean mutates t. It fails only with a non-positive multiplier or an empty table.
func (c *Cleaner) Clean(t *dataset.Table) (*CleaningReport, error) {
	if c.multiplier <= 0 || math.IsNaN(c.multiplier) {
		return nil, errors.NewValidationError("iqr_multiplier", "must be positive", c.multiplier)
	}
	if t.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Cleaner.Clean")
	}

	report := &CleaningReport{Rows: t.NumRows()}
	for _, col := range t.Columns() {
		report.NullsBefore += col.MissingCount()
	}

	reports := make([]ColumnReport, len(t.Columns()))
	for i, col := range t.Columns() {
		reports[i] = ColumnReport{Column: col.Name, Kind: col.Kind.String()}
		if col.Kind == dataset.Numeric {
			c.imputeNumeric(col, &reports[i])
		} else {
			c.imputeCategorical(col, &reports[i])
		}
	}

	for i, col := range t.Columns() {
		if col.Kind != dataset.Numeric {
			continue
		}
		c.capOutliers(col, &reports[i])
		report.TotalClipped += reports[i].Clipped
	}

	for _, col := range t.Columns() {
		report.NullsAfter += col.MissingCount()
	}
	report.Columns = reports

	c.logger.Info("Data cleaned",
		log.OperationKey, log.OperationClean,
		log.SamplesKey, report.Rows,
		"nulls_before", report.NullsBefore,
		"nulls_after", report.NullsAfter,
		log.ClippedKey, report.TotalClipped,
	)
	return report, nil
}

func (c *Cleaner) imputeNumeric(col *dataset.Column, r *ColumnReport) {
	present := make([]float64, 0, len(col.Numeric))
	for _, v := range col.Numeric {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	missing := len(col.Numeric) - len(present)
	if missing == 0 {
		return
	}

	fill := 0.0
	if len(present) == 0 {
		errors.Warn(errors.NewDataConversionWarning(col.Name, "missing", "0", "every value is missing; filled with 0"))
	} else {
		sort.Float64s(present)
		fill = quantileSorted(present, 0.5)
	}
	for i, v := range col.Numeric {
		if math.IsNaN(v) {
			col.Numeric[i] = fill
		}
	}
	r.Imputed = missing
	r.FillValue = fill

	c.logger.Debug("Numeric nulls filled with median",
		log.ColumnKey, col.Name, log.ImputedKey, missing, "fill_value", fill)
}

func (c *Cleaner) imputeCategorical(col *dataset.Column, r *ColumnReport) {
	missing := 0
	for _, m := range col.Missing {
		if m {
			missing++
		}
	}
	if missing == 0 {
		return
	}

	fill := mode(col.Categorical, col.Missing)
	if missing == len(col.Categorical) {
		errors.Warn(errors.NewDataConversionWarning(col.Name, "missing", "empty string", "every value is missing"))
	}
	for i, m := range col.Missing {
		if m {
			col.Categorical[i] = fill
			col.Missing[i] = false
		}
	}
	r.Imputed = missing
	r.FillCategory = fill

	c.logger.Debug("Categorical nulls filled with mode",
		log.ColumnKey, col.Name, log.ImputedKey, missing, "fill_value", fill)
}

func (c *Cleaner) capOutliers(col *dataset.Column, r *ColumnReport) {
	sorted := append([]float64(nil), col.Numeric...)
	sort.Float64s(sorted)
	q1 := quantileSorted(sorted, 0.25)
	q3 := quantileSorted(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - c.multiplier*iqr
	upper := q3 + c.multiplier*iqr

	clipped := 0
	for i, v := range col.Numeric {
		switch {
		case v < lower:
			col.Numeric[i] = lower
			clipped++
		case v > upper:
			col.Numeric[i] = upper
			clipped++
		}
	}
	r.Q1, r.Q3, r.Lower, r.Upper, r.Clipped = q1, q3, lower, upper, clipped

	if clipped > 0 {
		c.logger.Debug("Outliers capped",
			log.ColumnKey, col.Name, log.ClippedKey, clipped, "lower_fence", lower, "upper_fence", upper)
	}
}

// quantileSorted returns the p-quantile of ascending x using linear
// interpolation between closest ranks: h = (n-1)p.
func quantileSorted(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return x[n-1]
	}
	return x[lo] + (h-float64(lo))*(x[lo+1]-x[lo])
}

// mode returns the most frequent non-missing value; ties go to the
// lexicographically smallest.
func mode(values []string, missing []bool) string {
	counts := make(map[string]int)
	for i, v := range values {
		if !missing[i] {
			counts[v]++
		}
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
