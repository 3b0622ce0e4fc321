package validation

import "fmt"

type IssueType string

const (
	IssueMissingColumn  IssueType = "MISSING_COLUMN"
	IssueInvalidType    IssueType = "INVALID_TYPE"
	IssueMissingData    IssueType = "MISSING_DATA"
	IssueInvalidQuarter IssueType = "INVALID_QUARTER"
)

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

type IssueStatus string

const (
	StatusPending   IssueStatus = "pending"
	StatusCorrected IssueStatus = "corrected"
	StatusIgnored   IssueStatus = "ignored"
)

// sampleDisplayLimit caps how many row samples a disclosure shows at once.
const sampleDisplayLimit = 5

//
// Wire types, mirroring the validation backend's response
//

type MissingHeaderDetail struct {
	Header       string `json:"header"`
	ExpectedType string `json:"expected_type,omitempty"`
	Description  string `json:"description,omitempty"`
}

type RowSample struct {
	Row         int    `json:"row"`
	Value       string `json:"value"`
	Explanation string `json:"explanation,omitempty"`
}

type DataIssue struct {
	IssueType    string      `json:"issue_type"`
	Column       string      `json:"column,omitempty"`
	AffectedRows []int       `json:"affected_rows,omitempty"`
	MissingRows  []int       `json:"missing_rows,omitempty"`
	Percentage   *float64    `json:"percentage,omitempty"`
	InvalidRows  []RowSample `json:"invalid_rows,omitempty"`
	Description  string      `json:"description,omitempty"`
}

type ValidationResult struct {
	MissingHeadersDetailed []MissingHeaderDetail `json:"missing_headers_detailed,omitempty"`
	DataIssues             []DataIssue           `json:"data_issues,omitempty"`
}

type FileResult struct {
	FileName         string           `json:"file_name"`
	SessionID        string           `json:"session_id"`
	HasIssues        bool             `json:"has_issues"`
	ValidationResult ValidationResult `json:"validation_result"`
}

type ValidateResponse struct {
	Files []FileResult `json:"files"`
}

//
// Normalized issues
//

type MissingColumnDetails struct {
	ColumnName string `json:"column_name"`
	Suggestion string `json:"suggestion"`
}

type InvalidTypeDetails struct {
	ColumnName   string      `json:"column_name,omitempty"`
	AffectedRows []int       `json:"affected_rows,omitempty"`
	Percentage   *float64    `json:"percentage,omitempty"`
	Samples      []RowSample `json:"samples,omitempty"`
	Description  string      `json:"description,omitempty"`
}

type MissingDataDetails struct {
	ColumnName  string   `json:"column_name,omitempty"`
	MissingRows []int    `json:"missing_rows,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"`
	Description string   `json:"description,omitempty"`
}

type InvalidQuarterDetails struct {
	ColumnName   string      `json:"column_name,omitempty"`
	AffectedRows []int       `json:"affected_rows,omitempty"`
	Percentage   *float64    `json:"percentage,omitempty"`
	Samples      []RowSample `json:"samples,omitempty"`
	Description  string      `json:"description,omitempty"`
}

// Issue is one normalized finding. Exactly one of the details pointers is
// set, matching Type, so each variant's fields are statically typed instead
// of an untyped bag of optionals.
type Issue struct {
	ID       int         `json:"id"`
	Type     IssueType   `json:"issue_type"`
	Label    string      `json:"label"`
	Severity Severity    `json:"severity"`
	Status   IssueStatus `json:"status"`

	MissingColumn  *MissingColumnDetails  `json:"missing_column,omitempty"`
	InvalidType    *InvalidTypeDetails    `json:"invalid_type,omitempty"`
	MissingData    *MissingDataDetails    `json:"missing_data,omitempty"`
	InvalidQuarter *InvalidQuarterDetails `json:"invalid_quarter,omitempty"`
}

// Normalize turns one backend validation result into an ordered issue list:
// missing-header issues first, then data issues in the order received, ids
// assigned sequentially from 1. Deterministic for a given input.
func Normalize(result ValidationResult) []Issue {
	issues := make([]Issue, 0, len(result.MissingHeadersDetailed)+len(result.DataIssues))
	nextID := 1

	for _, header := range result.MissingHeadersDetailed {
		issues = append(issues, Issue{
			ID:       nextID,
			Type:     IssueMissingColumn,
			Label:    fmt.Sprintf("Missing column: %s", header.Header),
			Severity: SeverityHigh,
			Status:   StatusPending,
			MissingColumn: &MissingColumnDetails{
				ColumnName: header.Header,
				Suggestion: missingColumnSuggestion(header),
			},
		})
		nextID++
	}

	for _, raw := range result.DataIssues {
		issue, ok := normalizeDataIssue(nextID, raw)
		if !ok {
			continue
		}
		issues = append(issues, issue)
		nextID++
	}

	return issues
}

func missingColumnSuggestion(header MissingHeaderDetail) string {
	if header.ExpectedType != "" {
		return fmt.Sprintf("Add a %q column (%s) to your file", header.Header, header.ExpectedType)
	}
	return fmt.Sprintf("Add a %q column to your file", header.Header)
}

func normalizeDataIssue(id int, raw DataIssue) (Issue, bool) {
	issue := Issue{
		ID:     id,
		Status: StatusPending,
	}

	switch IssueType(raw.IssueType) {
	case IssueInvalidType:
		issue.Type = IssueInvalidType
		issue.Label = dataIssueLabel("Invalid values", raw.Column)
		issue.Severity = severityFromPercentage(raw.Percentage)
		issue.InvalidType = &InvalidTypeDetails{
			ColumnName:   raw.Column,
			AffectedRows: raw.AffectedRows,
			Percentage:   raw.Percentage,
			Samples:      raw.InvalidRows,
			Description:  raw.Description,
		}
	case IssueMissingData:
		issue.Type = IssueMissingData
		issue.Label = dataIssueLabel("Missing data", raw.Column)
		issue.Severity = severityFromPercentage(raw.Percentage)
		issue.MissingData = &MissingDataDetails{
			ColumnName:  raw.Column,
			MissingRows: raw.MissingRows,
			Percentage:  raw.Percentage,
			Description: raw.Description,
		}
	case IssueInvalidQuarter:
		issue.Type = IssueInvalidQuarter
		issue.Label = dataIssueLabel("Dates outside the reporting quarter", raw.Column)
		// Out-of-quarter dates are never a minor issue, whatever the
		// percentage says.
		issue.Severity = SeverityHigh
		issue.InvalidQuarter = &InvalidQuarterDetails{
			ColumnName:   raw.Column,
			AffectedRows: raw.AffectedRows,
			Percentage:   raw.Percentage,
			Samples:      raw.InvalidRows,
			Description:  raw.Description,
		}
	default:
		return Issue{}, false
	}

	return issue, true
}

func dataIssueLabel(prefix, column string) string {
	if column == "" {
		return prefix
	}
	return fmt.Sprintf("%s in column %s", prefix, column)
}

// severityFromPercentage derives severity from the share of affected rows:
// over 50% is High, over 20% Medium, anything else (including an absent
// percentage) Low.
func severityFromPercentage(percentage *float64) Severity {
	if percentage == nil {
		return SeverityLow
	}
	switch {
	case *percentage > 50:
		return SeverityHigh
	case *percentage > 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AllResolved is the gate for leaving Correction: true when the list is
// empty or no issue is still pending.
func AllResolved(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Status == StatusPending {
			return false
		}
	}
	return true
}

// TrimSamples returns the first samples to display plus the count of the
// ones held back ("…and N more").
func TrimSamples(samples []RowSample) ([]RowSample, int) {
	if len(samples) <= sampleDisplayLimit {
		return samples, 0
	}
	return samples[:sampleDisplayLimit], len(samples) - sampleDisplayLimit
}

// VisibleSamples caps the displayed row samples for a disclosure.
func (d *InvalidQuarterDetails) VisibleSamples() ([]RowSample, int) {
	return TrimSamples(d.Samples)
}

func (d *InvalidTypeDetails) VisibleSamples() ([]RowSample, int) {
	return TrimSamples(d.Samples)
}
