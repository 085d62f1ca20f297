package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
	"github.com/shuttlewatch/shuttlewatch/internal/timeslot"
)

// Selectors for the rendered results page. Coupled to the site's
// markup by contract; if the site changes, these and the ktmb page
// implementation change together.
const (
	resultsTableSelector = "#tblTrainList, table.table-striped, table.train-table"
	bannerSelector       = ".validation-summary-errors, .alert-danger, .field-validation-error, #OnwardDate-error"
)

// Phrases the site renders instead of a table when no trains exist.
var noTrainsPhrases = []string{
	"no trains available",
	"no results found",
	"tiada keputusan",
}

// ParseReport is the outcome of parsing one results page.
type ParseReport struct {
	// Records holds every row that parsed, outbound leg first. For
	// round-trip pages the return leg's records carry the opposite
	// direction.
	Records []shuttle.TrainRecord

	// Warnings lists rows that were skipped. A malformed row never
	// aborts the parse.
	Warnings []shuttle.RowWarning
}

// Parse normalizes a rendered results page into train records.
//
// A visible validation banner yields *ValidationError: the search was
// never performed. A recognized empty table yields an empty report:
// the search ran and offered zero trains. A table where every row is
// malformed yields *ParseError, as does a page with neither a table
// nor a no-trains message.
func Parse(pageHTML string, dir shuttle.Direction) (*ParseReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &ParseError{Reason: "unreadable html: " + err.Error()}
	}

	if banner := bannerText(doc); banner != "" {
		return nil, &ValidationError{Message: banner}
	}

	tables := doc.Find(resultsTableSelector)
	if tables.Length() == 0 {
		if hasNoTrainsMessage(doc) {
			return &ParseReport{}, nil
		}
		return nil, &ParseError{Reason: "no results table or no-trains message"}
	}

	report := &ParseReport{}
	rowsSeen := 0

	// The first table is the requested leg; a second table on a
	// round-trip page is the return leg.
	tables.EachWithBreak(func(i int, table *goquery.Selection) bool {
		if i > 1 {
			return false
		}
		legDir := dir
		if i == 1 {
			legDir = dir.Opposite()
		}
		rowsSeen += parseTable(table, legDir, report)
		return true
	})

	if rowsSeen > 0 && len(report.Records) == 0 {
		return nil, &ParseError{Reason: fmt.Sprintf("all %d rows malformed", rowsSeen)}
	}

	return report, nil
}

// parseTable extracts records from one leg's table, appending to the
// report. Returns the number of data rows seen.
func parseTable(table *goquery.Selection, dir shuttle.Direction, report *ParseReport) int {
	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		// No tbody: take direct rows, skipping any header row.
		rows = table.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
			return row.Find("th").Length() == 0
		})
	}

	seen := 0
	rows.Each(func(i int, row *goquery.Selection) {
		seen++
		record, reason := parseRow(row, dir, len(report.Records))
		if reason != "" {
			report.Warnings = append(report.Warnings, shuttle.RowWarning{Row: i, Reason: reason})
			return
		}
		report.Records = append(report.Records, record)
	})
	return seen
}

// parseRow extracts one train record. The board has shipped with three
// column layouts: five columns (number, depart, arrive, duration,
// seats), four (number, depart, arrive, seats) and a minimal three
// (depart, arrive, seats). A non-empty reason means the row is skipped.
func parseRow(row *goquery.Selection, dir shuttle.Direction, ordinal int) (shuttle.TrainRecord, string) {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})

	var record shuttle.TrainRecord
	record.Direction = dir

	switch {
	case len(cells) >= 5:
		record.Number = cells[0]
		record.DepartureTime = cells[1]
		record.ArrivalTime = cells[2]
	case len(cells) == 4:
		record.Number = cells[0]
		record.DepartureTime = cells[1]
		record.ArrivalTime = cells[2]
	case len(cells) == 3:
		record.Number = fmt.Sprintf("Train %d", ordinal+1)
		record.DepartureTime = cells[0]
		record.ArrivalTime = cells[1]
	default:
		return record, fmt.Sprintf("row has %d cells, need at least 3", len(cells))
	}

	if record.Number == "" {
		return record, "empty train number"
	}
	if _, err := timeslot.Classify(record.DepartureTime); err != nil {
		return record, fmt.Sprintf("bad departure time %q", record.DepartureTime)
	}
	if _, err := timeslot.Classify(record.ArrivalTime); err != nil {
		return record, fmt.Sprintf("bad arrival time %q", record.ArrivalTime)
	}

	seats, ok := extractSeats(cells[len(cells)-1])
	if !ok {
		return record, fmt.Sprintf("no seat count in %q", cells[len(cells)-1])
	}
	record.Seats = seats

	return record, ""
}

// Seat cell shapes observed on the board: a bare number, "12 seats",
// "Available: 12", or a sold-out marker.
var seatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(\d+)$`),
	regexp.MustCompile(`(?i)(\d+)\s*seats?`),
	regexp.MustCompile(`(?i)available:?\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s*available`),
}

var soldOutMarkers = []string{"FULL", "SOLD", "UNAVAILABLE"}

func extractSeats(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)

	for _, marker := range soldOutMarkers {
		if strings.Contains(strings.ToUpper(cell), marker) {
			return 0, true
		}
	}

	for _, pattern := range seatPatterns {
		if m := pattern.FindStringSubmatch(cell); m != nil {
			var seats int
			if _, err := fmt.Sscanf(m[1], "%d", &seats); err == nil && seats >= 0 {
				return seats, true
			}
		}
	}
	return 0, false
}

func bannerText(doc *goquery.Document) string {
	var text string
	doc.Find(bannerSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text = strings.TrimSpace(sel.Text())
		return text == ""
	})
	return text
}

func hasNoTrainsMessage(doc *goquery.Document) bool {
	body := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range noTrainsPhrases {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}
