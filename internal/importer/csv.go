package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/taskvault/taskvault/internal/domain"
)

// Required CSV header columns, in any order. Extra columns are ignored.
var requiredColumns = []string{
	"task_name",
	"description",
	"status",
	"priority",
	"created_at",
	"assigned_user",
}

// ErrBadHeader indicates the CSV header is missing required columns.
var ErrBadHeader = errors.New("csv header missing required columns")

// csvDateLayout is the accepted created_at format (MM/DD/YYYY).
const csvDateLayout = "01/02/2006"

// Row is one parsed CSV data row.
type Row struct {
	// Line is the 1-based data row number (header excluded), used for
	// deterministic task IDs and row error reporting.
	Line int

	Name         string
	Description  string
	Done         bool
	Priority     domain.Priority
	CreatedAt    time.Time
	AssignedUser string
}

// ParseHeader validates the header record and returns a column-name to index
// mapping. Returns ErrBadHeader listing any missing required columns.
func ParseHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadHeader, strings.Join(missing, ", "))
	}

	return index, nil
}

// ValidateHeader reads just the header from a CSV stream. Used at upload time
// to reject unusable files before a job is queued.
func ValidateHeader(r io.Reader) error {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	_, err = ParseHeader(header)
	return err
}

// ParseRow converts one CSV record into a Row using the header mapping.
// Returns an error only for conditions that make the row unusable; lenient
// fields (status, created_at) coerce instead.
func ParseRow(line int, record []string, index map[string]int) (*Row, error) {
	field := func(name string) string {
		i := index[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := field("task_name")
	if name == "" {
		return nil, domain.ErrEmptyTaskName
	}

	priority := domain.PriorityMedium
	if p := field("priority"); p != "" {
		priority = domain.Priority(strings.ToUpper(p))
		if !domain.ValidPriority(priority) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, p)
		}
	}

	createdAt, err := time.Parse(csvDateLayout, field("created_at"))
	if err != nil {
		// Unparseable or absent dates fall back to the import time.
		createdAt = time.Now().UTC()
	}

	return &Row{
		Line:         line,
		Name:         name,
		Description:  field("description"),
		Done:         parseStatus(field("status")),
		Priority:     priority,
		CreatedAt:    createdAt,
		AssignedUser: field("assigned_user"),
	}, nil
}

// parseStatus coerces the CSV status column into a done flag. Accepted true
// spellings: true, yes, y, 1 (case-insensitive). Everything else is false.
func parseStatus(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}
