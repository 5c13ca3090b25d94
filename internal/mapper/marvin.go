package mapper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tasksync/internal/domain"
	"tasksync/internal/timecube"
)

// Marvin database names.
const (
	MarvinTasks      = "Tasks"
	MarvinCategories = "Categories"
	MarvinGoals      = "Goals"
)

// MarvinDoc is a document from the task manager's CouchDB. Tasks,
// categories, projects and goals share the same shape.
type MarvinDoc struct {
	ID           string                   `json:"_id,omitempty"`
	Rev          string                   `json:"_rev,omitempty"`
	DB           string                   `json:"db,omitempty"`
	Type         string                   `json:"type,omitempty"`
	Title        string                   `json:"title"`
	ParentID     string                   `json:"parentId,omitempty"`
	Day          string                   `json:"day,omitempty"`
	Done         bool                     `json:"done,omitempty"`
	TimeEstimate int64                    `json:"timeEstimate,omitempty"`
	Duration     int64                    `json:"duration,omitempty"`
	PlannedWeek  string                   `json:"plannedWeek,omitempty"`
	PlannedMonth string                   `json:"plannedMonth,omitempty"`
	LabelIDs     []string                 `json:"labelIds,omitempty"`
	DependsOn    map[string]bool          `json:"dependsOn,omitempty"`
	Subtasks     map[string]MarvinSubtask `json:"subtasks,omitempty"`
	UpdatedAt    int64                    `json:"updatedAt,omitempty"`
	Note         string                   `json:"note,omitempty"`
	Recurring    bool                     `json:"recurring,omitempty"`

	// GoalIDs are collected from the g_in_<goalId> keys.
	GoalIDs []string `json:"-"`

	// Filled by the adapter before mapping.
	Labels          []string              `json:"-"`
	Goals           []string              `json:"-"`
	DependsOnTitles []string              `json:"-"`
	Classification  domain.Classification `json:"-"`
}

// MarvinSubtask is an entry of MarvinDoc.Subtasks.
type MarvinSubtask struct {
	ID           string  `json:"_id"`
	Title        string  `json:"title"`
	Done         bool    `json:"done"`
	TimeEstimate int64   `json:"timeEstimate,omitempty"`
	Rank         float64 `json:"rank"`
}

// MarvinLabel is an entry of the labels endpoint.
type MarvinLabel struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
}

const goalKeyPrefix = "g_in_"

func (d *MarvinDoc) UnmarshalJSON(b []byte) error {
	type plain MarvinDoc
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	for k := range keys {
		if strings.HasPrefix(k, goalKeyPrefix) {
			p.GoalIDs = append(p.GoalIDs, strings.TrimPrefix(k, goalKeyPrefix))
		}
	}
	sort.Strings(p.GoalIDs)
	*d = MarvinDoc(p)
	return nil
}

// DependencyIDs returns the ids of the tasks d depends on, sorted.
func (d MarvinDoc) DependencyIDs() []string {
	ids := make([]string, 0, len(d.DependsOn))
	for id, on := range d.DependsOn {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

var clockPrefixRe = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(am|pm)`)

// splitClockPrefix strips a leading "h:mm am" from title and returns the
// 24-hour clock it denotes.
func splitClockPrefix(title string) (hour, minute int, rest string, ok bool) {
	sm := clockPrefixRe.FindStringSubmatchIndex(title)
	if sm == nil {
		return 0, 0, title, false
	}
	hour, _ = strconv.Atoi(title[sm[2]:sm[3]])
	minute, _ = strconv.Atoi(title[sm[4]:sm[5]])
	meridiem := strings.ToLower(title[sm[6]:sm[7]])
	if hour > 12 || minute > 59 {
		return 0, 0, title, false
	}
	switch {
	case meridiem == "pm" && hour != 12:
		hour += 12
	case meridiem == "am" && hour == 12:
		hour = 0
	}
	return hour, minute, strings.TrimSpace(title[sm[1]:]), true
}

var notionIDRe = regexp.MustCompile(`^[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}$`)

// notionIDFromNote accepts the note field only when it holds a page id.
func notionIDFromNote(note string) string {
	n := strings.TrimSpace(note)
	if notionIDRe.MatchString(n) {
		return n
	}
	return ""
}

func (m *Mapper) marvinDay(raw string) (timecube.Instant, error) {
	if raw == "" || raw == domain.UnassignedID {
		return timecube.Instant{}, nil
	}
	return m.parse(raw)
}

// TaskFromMarvin converts a task document to a canonical Task. A leading
// "5:30 pm" in the title is folded into the scheduled day.
func (m *Mapper) TaskFromMarvin(d MarvinDoc) (domain.Task, error) {
	if d.ID == "" {
		return domain.Task{}, missing("marvin task", "_id")
	}
	day, err := m.marvinDay(d.Day)
	if err != nil {
		return domain.Task{}, fmt.Errorf("marvin task %s day: %w", d.ID, err)
	}
	title := d.Title
	if !day.IsZero() {
		if h, mm, rest, ok := splitClockPrefix(title); ok {
			day = day.AtClock(h, mm)
			title = rest
		}
	}
	week, err := m.weekLabelFromMonday(d.PlannedWeek)
	if err != nil {
		return domain.Task{}, fmt.Errorf("marvin task %s plannedWeek: %w", d.ID, err)
	}
	month, quarter, err := m.monthLabels(d.PlannedMonth)
	if err != nil {
		return domain.Task{}, fmt.Errorf("marvin task %s plannedMonth: %w", d.ID, err)
	}

	t := domain.Task{
		Refs:           domain.Refs{MarvinID: d.ID, NotionID: notionIDFromNote(d.Note)},
		Classification: d.Classification,
		Planning:       domain.Planning{Week: week, Month: month, Quarter: quarter},
		Title:          title,
		Day:            day,
		DependsOn:      d.DependsOnTitles,
		Goals:          d.Goals,
		TimeEstimate:   msToMinutes(d.TimeEstimate),
		Duration:       msToMinutes(d.Duration),
		Subtasks:       subtasksFromMarvin(d.Subtasks),
		Tags:           d.Labels,
		Done:           d.Done,
	}
	if d.UpdatedAt > 0 {
		t.LastUpdated, _ = timecube.FromEpochMillis(d.UpdatedAt, m.tz)
	}
	return t, nil
}

func subtasksFromMarvin(in map[string]MarvinSubtask) []domain.Subtask {
	if len(in) == 0 {
		return nil
	}
	ordered := make([]MarvinSubtask, 0, len(in))
	for id, s := range in {
		if s.ID == "" {
			s.ID = id
		}
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Rank != ordered[j].Rank {
			return ordered[i].Rank < ordered[j].Rank
		}
		return ordered[i].ID < ordered[j].ID
	})
	out := make([]domain.Subtask, 0, len(ordered))
	for _, s := range ordered {
		out = append(out, domain.Subtask{
			Refs:         domain.Refs{MarvinID: s.ID},
			Title:        s.Title,
			Done:         s.Done,
			TimeEstimate: msToMinutes(s.TimeEstimate),
		})
	}
	return out
}

// TaskToMarvin converts a canonical Task to a task document. A time of day
// on the scheduled day is written back as a title prefix.
func (m *Mapper) TaskToMarvin(t domain.Task) (MarvinDoc, error) {
	week, err := m.mondayFromWeekLabel(t.Planning.Week, t.Day)
	if err != nil {
		return MarvinDoc{}, err
	}
	month, err := monthFromLabel(t.Planning.Month)
	if err != nil {
		return MarvinDoc{}, err
	}
	d := MarvinDoc{
		ID:              t.MarvinID,
		DB:              MarvinTasks,
		Title:           t.Title,
		Done:            t.Done,
		TimeEstimate:    minutesToMs(t.TimeEstimate),
		Duration:        minutesToMs(t.Duration),
		PlannedWeek:     week,
		PlannedMonth:    month,
		Note:            t.NotionID,
		Labels:          t.Tags,
		Goals:           t.Goals,
		DependsOnTitles: t.DependsOn,
		Classification:  t.Classification,
	}
	if !t.Day.IsZero() {
		d.Day = t.Day.Date()
		if !t.Day.IsMidnight() {
			d.Title = t.Day.Local().Format("3:04 pm") + " " + t.Title
		}
	}
	if len(t.Subtasks) > 0 {
		d.Subtasks = make(map[string]MarvinSubtask, len(t.Subtasks))
		for i, s := range t.Subtasks {
			id := s.MarvinID
			if id == "" {
				id = fmt.Sprintf("new-%d", i)
			}
			d.Subtasks[id] = MarvinSubtask{
				ID:           id,
				Title:        s.Title,
				Done:         s.Done,
				TimeEstimate: minutesToMs(s.TimeEstimate),
				Rank:         float64(i + 1),
			}
		}
	}
	return d, nil
}

// ProjectFromMarvin converts a category document of type project.
func (m *Mapper) ProjectFromMarvin(d MarvinDoc) (domain.Project, error) {
	if d.ID == "" {
		return domain.Project{}, missing("marvin project", "_id")
	}
	day, err := m.marvinDay(d.Day)
	if err != nil {
		return domain.Project{}, fmt.Errorf("marvin project %s day: %w", d.ID, err)
	}
	week, err := m.weekLabelFromMonday(d.PlannedWeek)
	if err != nil {
		return domain.Project{}, fmt.Errorf("marvin project %s plannedWeek: %w", d.ID, err)
	}
	month, quarter, err := m.monthLabels(d.PlannedMonth)
	if err != nil {
		return domain.Project{}, fmt.Errorf("marvin project %s plannedMonth: %w", d.ID, err)
	}
	p := domain.Project{
		Refs:           domain.Refs{MarvinID: d.ID, NotionID: notionIDFromNote(d.Note)},
		Classification: d.Classification,
		Planning:       domain.Planning{Week: week, Month: month, Quarter: quarter},
		Title:          d.Title,
		Day:            day,
		Goals:          d.Goals,
		DependsOn:      d.DependsOnTitles,
		Done:           d.Done,
	}
	if d.UpdatedAt > 0 {
		p.LastUpdated, _ = timecube.FromEpochMillis(d.UpdatedAt, m.tz)
	}
	return p, nil
}

// ProjectToMarvin converts a canonical Project to a category document.
func (m *Mapper) ProjectToMarvin(p domain.Project) (MarvinDoc, error) {
	week, err := m.mondayFromWeekLabel(p.Planning.Week, p.Day)
	if err != nil {
		return MarvinDoc{}, err
	}
	month, err := monthFromLabel(p.Planning.Month)
	if err != nil {
		return MarvinDoc{}, err
	}
	d := MarvinDoc{
		ID:              p.MarvinID,
		DB:              MarvinCategories,
		Type:            string(domain.NodeProject),
		Title:           p.Title,
		Done:            p.Done,
		PlannedWeek:     week,
		PlannedMonth:    month,
		Note:            p.NotionID,
		Goals:           p.Goals,
		DependsOnTitles: p.DependsOn,
		Classification:  p.Classification,
	}
	if !p.Day.IsZero() {
		d.Day = p.Day.Date()
	}
	return d, nil
}

// NodeFromMarvin converts a category document to a taxonomy node.
func NodeFromMarvin(d MarvinDoc) domain.TaxonomyNode {
	typ := domain.NodeType(d.Type)
	if d.ID == domain.RootID {
		typ = domain.NodeRoot
	}
	return domain.TaxonomyNode{ID: d.ID, ParentID: d.ParentID, Type: typ, Title: d.Title}
}
