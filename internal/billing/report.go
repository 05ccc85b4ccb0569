package billing

import (
	"sort"

	"eltimer/internal/core"
	"eltimer/internal/store"
)

// EntryFilter is the capability check threaded through the report queries:
// it decides which time entries the current viewer may see. Materials carry
// no per-user restriction.
type EntryFilter func(core.TimeEntry) bool

type (
	// MonthRow is one line of the monthly rollup. A month present in only
	// one of the two series still gets a row, with the other side at zero.
	MonthRow struct {
		Month        string  `json:"month"`
		Hours        float64 `json:"hours"`
		MaterialQty  float64 `json:"materialQty"`
		MaterialCost float64 `json:"materialCost"`
	}

	DayRow struct {
		Date  string  `json:"date"`
		Hours float64 `json:"hours"`
	}

	// ProjectSection holds the three views produced per project. HasData is
	// false when nothing fell in range; the section still renders with a
	// "no data" notice.
	ProjectSection struct {
		ProjectID  string         `json:"projectId"`
		Title      string         `json:"title"`
		HasData    bool           `json:"hasData"`
		Monthly    []MonthRow     `json:"monthly"`
		Daily      []DayRow       `json:"daily"`
		TotalHours float64        `json:"totalHours"`
		Materials  []MaterialLine `json:"materials"`
	}

	// CustomerSection always renders its heading; a customer without
	// projects just carries an empty Projects slice.
	CustomerSection struct {
		Customer core.Customer    `json:"customer"`
		Projects []ProjectSection `json:"projects"`
	}

	Report struct {
		Start     string            `json:"start"`
		End       string            `json:"end"`
		Customers []CustomerSection `json:"customers"`
	}
)

// PeriodReport builds the fixed-structure period report for the given
// customers and inclusive date range. Customer IDs that no longer resolve
// are skipped; every surviving customer and project emits its section even
// when empty. An inverted range yields sections with no rows.
func PeriodReport(s *store.Store, visible EntryFilter, customerIDs []string, start, end core.Date) Report {
	report := Report{Start: start.ISO(), End: end.ISO()}

	for _, customerID := range customerIDs {
		customer, ok := s.CustomerByID(customerID)
		if !ok {
			continue
		}
		section := CustomerSection{Customer: customer}
		for _, project := range s.ProjectsByCustomer(customer.ID) {
			section.Projects = append(section.Projects, projectSection(s, visible, project, start, end))
		}
		report.Customers = append(report.Customers, section)
	}
	return report
}

func projectSection(s *store.Store, visible EntryFilter, project core.Project, start, end core.Date) ProjectSection {
	section := ProjectSection{ProjectID: project.ID, Title: project.Title}

	var times []core.TimeEntry
	for _, t := range s.TimeEntriesByProject(project.ID) {
		if visible != nil && !visible(t) {
			continue
		}
		if t.Date.InRange(start, end) {
			times = append(times, t)
		}
	}

	var materials []core.Material
	for _, m := range s.MaterialsByProject(project.ID) {
		if m.Date.InRange(start, end) {
			materials = append(materials, m)
		}
	}

	section.Monthly = monthlyRollup(times, materials)
	section.Daily, section.TotalHours = dailyRollup(times)
	for _, m := range materials {
		section.Materials = append(section.Materials, MaterialLine{
			Date:      m.Date.ISO(),
			Name:      m.Name,
			Quantity:  m.Quantity,
			UnitPrice: m.UnitPrice,
			Cost:      m.Cost(),
		})
	}
	section.HasData = len(times) > 0 || len(materials) > 0
	return section
}

// monthlyRollup groups both series by year-month and emits the union of
// months, ascending.
func monthlyRollup(times []core.TimeEntry, materials []core.Material) []MonthRow {
	hours := map[string]float64{}
	for _, t := range times {
		hours[t.Date.MonthKey()] += t.Hours
	}

	type matSum struct{ qty, cost float64 }
	mats := map[string]matSum{}
	for _, m := range materials {
		sum := mats[m.Date.MonthKey()]
		sum.qty += m.Quantity
		sum.cost += m.Cost()
		mats[m.Date.MonthKey()] = sum
	}

	months := make([]string, 0, len(hours)+len(mats))
	seen := map[string]bool{}
	for month := range hours {
		seen[month] = true
		months = append(months, month)
	}
	for month := range mats {
		if !seen[month] {
			months = append(months, month)
		}
	}
	sort.Strings(months)

	rows := make([]MonthRow, 0, len(months))
	for _, month := range months {
		rows = append(rows, MonthRow{
			Month:        month,
			Hours:        hours[month],
			MaterialQty:  mats[month].qty,
			MaterialCost: mats[month].cost,
		})
	}
	return rows
}

func dailyRollup(times []core.TimeEntry) ([]DayRow, float64) {
	perDay := map[string]float64{}
	var total float64
	for _, t := range times {
		perDay[t.Date.ISO()] += t.Hours
		total += t.Hours
	}

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)

	rows := make([]DayRow, 0, len(days))
	for _, day := range days {
		rows = append(rows, DayRow{Date: day, Hours: perDay[day]})
	}
	return rows, total
}
