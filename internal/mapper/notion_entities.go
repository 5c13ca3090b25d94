package mapper

import (
	"fmt"

	"tasksync/internal/domain"
	"tasksync/internal/timecube"
)

// Task database properties.
const (
	TaskTitle          = "Task"
	TaskMarvinID       = "AM ID"
	TaskScheduled      = "Scheduled"
	TaskDone           = "Done"
	TaskDelete         = "Delete"
	TaskDependsOn      = "Depends On"
	TaskProjects       = "Projects"
	TaskSubcategory    = "Value Goals"
	TaskPillar         = "Pillar"
	TaskGoals          = "Goal Outcome"
	TaskPlannedWeek    = "Planned Week"
	TaskPlannedMonth   = "Planned Month"
	TaskPlannedQuarter = "Planned Quarter"
	TaskEstimate       = "Estimated Duration (min)"
	TaskTracked        = "Tracked Time (min)"
	TaskTags           = "Tags"
	TaskParent         = "Parent item"
)

// Project database properties.
const (
	ProjectTitle    = "Project Name"
	ProjectReview   = "Review Date"
	ProjectStatus   = "Status"
	ProjectGoals    = "Goal Outcomes"
	StatusDone      = "Done"
	StatusActive    = "Active"
	ProjectMarvinID = TaskMarvinID
)

// Activity database properties.
const (
	ActivityTitle           = "Activity Name"
	ActivityGarminID        = "Garmin ID"
	ActivityDate            = "Date"
	ActivityType            = "Activity Type"
	ActivitySubtype         = "Subactivity Type"
	ActivityDistance        = "Distance (miles)"
	ActivityDuration        = "Duration (min)"
	ActivityCalories        = "Calories"
	ActivityPace            = "Avg Pace"
	ActivityAvgPower        = "Avg Power"
	ActivityMaxPower        = "Max Power"
	ActivityTrainingEffect  = "Training Effect"
	ActivityAerobic         = "Aerobic"
	ActivityAerobicEffect   = "Aerobic Effect"
	ActivityAnaerobic       = "Anaerobic"
	ActivityAnaerobicEffect = "Anaerobic Effect"
	ActivityPR              = "PR"
	ActivityFav             = "Fav"
)

// RelationProps lists every relation property whose titles the Notion
// adapter resolves, keyed by the property name.
var RelationProps = []string{
	TaskDependsOn, TaskProjects, TaskSubcategory, TaskPillar, TaskGoals,
	TaskPlannedWeek, TaskPlannedMonth, TaskPlannedQuarter, ProjectGoals,
}

func (m *Mapper) notionTime(raw string) (timecube.Instant, error) {
	if raw == "" {
		return timecube.Instant{}, nil
	}
	return m.parse(raw)
}

func (m *Mapper) lastEdited(pg Page) timecube.Instant {
	i, err := m.notionTime(pg.LastEditedTime)
	if err != nil {
		return timecube.Instant{}
	}
	return i
}

// TaskFromNotion converts a task page and its sub-item pages. Relation
// titles must already be resolved.
func (m *Mapper) TaskFromNotion(pg Page, subpages []Page) (domain.Task, error) {
	title := pg.Prop(TaskTitle).Text()
	if title == "" {
		return domain.Task{}, missing("notion task", TaskTitle)
	}
	day, err := m.notionTime(pg.Prop(TaskScheduled).DateStart())
	if err != nil {
		return domain.Task{}, fmt.Errorf("notion task %s scheduled: %w", pg.ID, err)
	}
	t := domain.Task{
		Refs: domain.Refs{MarvinID: pg.Prop(TaskMarvinID).Text(), NotionID: pg.ID},
		Classification: domain.Classification{
			Pillar:      pg.Prop(TaskPillar).FirstTitle(),
			Subcategory: pg.Prop(TaskSubcategory).FirstTitle(),
			Project:     pg.Prop(TaskProjects).FirstTitle(),
		},
		Planning: domain.Planning{
			Week:    pg.Prop(TaskPlannedWeek).FirstTitle(),
			Month:   pg.Prop(TaskPlannedMonth).FirstTitle(),
			Quarter: pg.Prop(TaskPlannedQuarter).FirstTitle(),
		},
		Title:        title,
		Day:          day,
		DependsOn:    pg.Prop(TaskDependsOn).Titles(),
		Goals:        pg.Prop(TaskGoals).Titles(),
		TimeEstimate: pg.Prop(TaskEstimate).Minutes(),
		Duration:     pg.Prop(TaskTracked).Minutes(),
		Tags:         pg.Prop(TaskTags).Names(),
		Done:         pg.Prop(TaskDone).Checked(),
		Delete:       pg.Prop(TaskDelete).Checked(),
		LastUpdated:  m.lastEdited(pg),
	}
	for _, sp := range subpages {
		st, err := SubtaskFromNotion(sp)
		if err != nil {
			return domain.Task{}, err
		}
		t.Subtasks = append(t.Subtasks, st)
	}
	return t, nil
}

func SubtaskFromNotion(pg Page) (domain.Subtask, error) {
	title := pg.Prop(TaskTitle).Text()
	if title == "" {
		return domain.Subtask{}, missing("notion subtask", TaskTitle)
	}
	return domain.Subtask{
		Refs:         domain.Refs{MarvinID: pg.Prop(TaskMarvinID).Text(), NotionID: pg.ID},
		Title:        title,
		Done:         pg.Prop(TaskDone).Checked(),
		TimeEstimate: pg.Prop(TaskEstimate).Minutes(),
	}, nil
}

// TaskToNotion returns the page for t and one page per subtask. Relation
// properties carry titles; the adapter swaps them for page ids.
func (m *Mapper) TaskToNotion(t domain.Task) (Page, []Page) {
	props := map[string]Property{
		TaskTitle:          TitleProp(t.Title),
		TaskMarvinID:       TextProp(t.MarvinID),
		TaskDone:           CheckboxProp(t.Done),
		TaskEstimate:       NumberProp(float64(t.TimeEstimate), true),
		TaskTracked:        NumberProp(float64(t.Duration), true),
		TaskScheduled:      DateProp(dateOrTimestamp(t.Day)),
		TaskProjects:       RelationByTitle(t.Project),
		TaskSubcategory:    RelationByTitle(t.Subcategory),
		TaskPillar:         RelationByTitle(t.Pillar),
		TaskGoals:          RelationByTitle(t.Goals...),
		TaskPlannedWeek:    RelationByTitle(t.Planning.Week),
		TaskPlannedMonth:   RelationByTitle(t.Planning.Month),
		TaskPlannedQuarter: RelationByTitle(t.Planning.Quarter),
	}
	if len(t.Tags) > 0 {
		props[TaskTags] = MultiSelectProp(t.Tags...)
	}
	pg := Page{ID: t.NotionID, Properties: props}

	subs := make([]Page, 0, len(t.Subtasks))
	for _, s := range t.Subtasks {
		subs = append(subs, SubtaskToNotion(s))
	}
	return pg, subs
}

func SubtaskToNotion(s domain.Subtask) Page {
	return Page{ID: s.NotionID, Properties: map[string]Property{
		TaskTitle:    TitleProp(s.Title),
		TaskMarvinID: TextProp(s.MarvinID),
		TaskDone:     CheckboxProp(s.Done),
		TaskEstimate: NumberProp(float64(s.TimeEstimate), true),
	}}
}

func dateOrTimestamp(i timecube.Instant) string {
	if i.IsZero() {
		return ""
	}
	return i.DateOrTimestamp()
}

// ProjectFromNotion converts a project page.
func (m *Mapper) ProjectFromNotion(pg Page) (domain.Project, error) {
	title := pg.Prop(ProjectTitle).Text()
	if title == "" {
		return domain.Project{}, missing("notion project", ProjectTitle)
	}
	day, err := m.notionTime(pg.Prop(ProjectReview).DateStart())
	if err != nil {
		return domain.Project{}, fmt.Errorf("notion project %s review date: %w", pg.ID, err)
	}
	return domain.Project{
		Refs: domain.Refs{MarvinID: pg.Prop(ProjectMarvinID).Text(), NotionID: pg.ID},
		Classification: domain.Classification{
			Pillar:      pg.Prop(TaskPillar).FirstTitle(),
			Subcategory: pg.Prop(TaskSubcategory).FirstTitle(),
		},
		Planning: domain.Planning{
			Week:    pg.Prop(TaskPlannedWeek).FirstTitle(),
			Month:   pg.Prop(TaskPlannedMonth).FirstTitle(),
			Quarter: pg.Prop(TaskPlannedQuarter).FirstTitle(),
		},
		Title:       title,
		Day:         day,
		Goals:       pg.Prop(ProjectGoals).Titles(),
		Done:        pg.Prop(ProjectStatus).StatusName() == StatusDone,
		LastUpdated: m.lastEdited(pg),
	}, nil
}

// ProjectToNotion converts a canonical Project to a page.
func (m *Mapper) ProjectToNotion(p domain.Project) Page {
	status := StatusActive
	if p.Done {
		status = StatusDone
	}
	return Page{ID: p.NotionID, Properties: map[string]Property{
		ProjectTitle:       TitleProp(p.Title),
		ProjectMarvinID:    TextProp(p.MarvinID),
		ProjectStatus:      StatusProp(status),
		ProjectReview:      DateProp(dateOrTimestamp(p.Day)),
		TaskPillar:         RelationByTitle(p.Pillar),
		TaskSubcategory:    RelationByTitle(p.Subcategory),
		ProjectGoals:       RelationByTitle(p.Goals...),
		TaskPlannedWeek:    RelationByTitle(p.Planning.Week),
		TaskPlannedMonth:   RelationByTitle(p.Planning.Month),
		TaskPlannedQuarter: RelationByTitle(p.Planning.Quarter),
	}}
}

// ActivityFromNotion converts an activity page.
func (m *Mapper) ActivityFromNotion(pg Page) (domain.Activity, error) {
	title := pg.Prop(ActivityTitle).Text()
	if title == "" {
		return domain.Activity{}, missing("notion activity", ActivityTitle)
	}
	date, err := m.notionTime(pg.Prop(ActivityDate).DateStart())
	if err != nil {
		return domain.Activity{}, fmt.Errorf("notion activity %s date: %w", pg.ID, err)
	}
	return domain.Activity{
		Refs:            domain.Refs{GarminID: pg.Prop(ActivityGarminID).Text(), NotionID: pg.ID},
		Title:           title,
		Date:            date,
		Type:            pg.Prop(ActivityType).SelectName(),
		Subtype:         pg.Prop(ActivitySubtype).SelectName(),
		Distance:        pg.Prop(ActivityDistance).Num(),
		Duration:        pg.Prop(ActivityDuration).Num(),
		Calories:        int(pg.Prop(ActivityCalories).Num()),
		AvgPace:         pg.Prop(ActivityPace).Text(),
		AvgPower:        pg.Prop(ActivityAvgPower).Num(),
		MaxPower:        pg.Prop(ActivityMaxPower).Num(),
		TrainingEffect:  pg.Prop(ActivityTrainingEffect).SelectName(),
		Aerobic:         pg.Prop(ActivityAerobic).Num(),
		AerobicEffect:   pg.Prop(ActivityAerobicEffect).SelectName(),
		Anaerobic:       pg.Prop(ActivityAnaerobic).Num(),
		AnaerobicEffect: pg.Prop(ActivityAnaerobicEffect).SelectName(),
		PR:              pg.Prop(ActivityPR).Checked(),
		Fav:             pg.Prop(ActivityFav).Checked(),
	}, nil
}

// ActivityToNotion converts a canonical Activity to a page.
func (m *Mapper) ActivityToNotion(a domain.Activity) Page {
	return Page{ID: a.NotionID, Properties: map[string]Property{
		ActivityTitle:           TitleProp(a.Title),
		ActivityGarminID:        TextProp(a.GarminID),
		ActivityDate:            DateProp(a.Date.Timestamp()),
		ActivityType:            SelectProp(a.Type),
		ActivitySubtype:         SelectProp(a.Subtype),
		ActivityDistance:        NumberProp(a.Distance, false),
		ActivityDuration:        NumberProp(a.Duration, false),
		ActivityCalories:        NumberProp(float64(a.Calories), false),
		ActivityPace:            TextProp(a.AvgPace),
		ActivityAvgPower:        NumberProp(a.AvgPower, true),
		ActivityMaxPower:        NumberProp(a.MaxPower, true),
		ActivityTrainingEffect:  SelectProp(a.TrainingEffect),
		ActivityAerobic:         NumberProp(a.Aerobic, false),
		ActivityAerobicEffect:   SelectProp(a.AerobicEffect),
		ActivityAnaerobic:       NumberProp(a.Anaerobic, false),
		ActivityAnaerobicEffect: SelectProp(a.AnaerobicEffect),
		ActivityPR:              CheckboxProp(a.PR),
		ActivityFav:             CheckboxProp(a.Fav),
	}}
}
