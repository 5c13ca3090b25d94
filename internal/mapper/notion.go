package mapper

import (
	"encoding/json"
	"math"
	"strings"
)

// Page is a Notion database page.
type Page struct {
	ID             string              `json:"id,omitempty"`
	Parent         *Parent             `json:"parent,omitempty"`
	Archived       bool                `json:"archived,omitempty"`
	LastEditedTime string              `json:"last_edited_time,omitempty"`
	Properties     map[string]Property `json:"properties"`
}

type Parent struct {
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// Property is a typed page property. Only the member named by Type is
// sent on the wire, so a nil or empty member clears the property.
type Property struct {
	Type        string     `json:"type,omitempty"`
	Title       []RichText `json:"title,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	Checkbox    *bool      `json:"checkbox,omitempty"`
	Date        *DateValue `json:"date,omitempty"`
	Relation    []Relation `json:"relation,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	Status      *Option    `json:"status,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
}

type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
}

// Relation points at another page. Title is filled by the adapter.
type Relation struct {
	ID    string `json:"id"`
	Title string `json:"-"`
}

type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

type Option struct {
	Name string `json:"name"`
}

// Property type names.
const (
	PropTitle       = "title"
	PropRichText    = "rich_text"
	PropNumber      = "number"
	PropCheckbox    = "checkbox"
	PropDate        = "date"
	PropRelation    = "relation"
	PropSelect      = "select"
	PropStatus      = "status"
	PropMultiSelect = "multi_select"
)

func (p Property) MarshalJSON() ([]byte, error) {
	var v any
	switch p.Type {
	case PropTitle:
		v = nonNil(p.Title)
	case PropRichText:
		v = nonNil(p.RichText)
	case PropNumber:
		v = p.Number
	case PropCheckbox:
		if p.Checkbox == nil {
			v = false
		} else {
			v = *p.Checkbox
		}
	case PropDate:
		v = p.Date
	case PropRelation:
		v = nonNil(p.Relation)
	case PropSelect:
		v = p.Select
	case PropStatus:
		v = p.Status
	case PropMultiSelect:
		v = nonNil(p.MultiSelect)
	default:
		type plain Property
		return json.Marshal(plain(p))
	}
	return json.Marshal(map[string]any{p.Type: v})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func TitleProp(s string) Property {
	return Property{Type: PropTitle, Title: textRuns(s)}
}

func TextProp(s string) Property {
	return Property{Type: PropRichText, RichText: textRuns(s)}
}

func textRuns(s string) []RichText {
	if s == "" {
		return nil
	}
	return []RichText{{Type: "text", Text: &TextContent{Content: s}, PlainText: s}}
}

// NumberProp clears the property when v is zero and omitZero is set.
func NumberProp(v float64, omitZero bool) Property {
	if omitZero && v == 0 {
		return Property{Type: PropNumber}
	}
	return Property{Type: PropNumber, Number: &v}
}

func CheckboxProp(b bool) Property {
	return Property{Type: PropCheckbox, Checkbox: &b}
}

// DateProp clears the property when start is empty.
func DateProp(start string) Property {
	if start == "" {
		return Property{Type: PropDate}
	}
	return Property{Type: PropDate, Date: &DateValue{Start: start}}
}

// RelationByTitle builds a relation whose ids the adapter resolves later.
func RelationByTitle(titles ...string) Property {
	p := Property{Type: PropRelation}
	for _, t := range titles {
		if t != "" {
			p.Relation = append(p.Relation, Relation{Title: t})
		}
	}
	return p
}

func RelationByID(ids ...string) Property {
	p := Property{Type: PropRelation}
	for _, id := range ids {
		p.Relation = append(p.Relation, Relation{ID: id})
	}
	return p
}

func SelectProp(name string) Property {
	if name == "" {
		return Property{Type: PropSelect}
	}
	return Property{Type: PropSelect, Select: &Option{Name: name}}
}

func StatusProp(name string) Property {
	return Property{Type: PropStatus, Status: &Option{Name: name}}
}

func MultiSelectProp(names ...string) Property {
	p := Property{Type: PropMultiSelect}
	for _, n := range names {
		p.MultiSelect = append(p.MultiSelect, Option{Name: n})
	}
	return p
}

// Text returns the concatenated plain text of a title or rich_text property.
func (p Property) Text() string {
	runs := p.Title
	if len(runs) == 0 {
		runs = p.RichText
	}
	var b strings.Builder
	for _, r := range runs {
		if r.PlainText != "" {
			b.WriteString(r.PlainText)
		} else if r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func (p Property) Num() float64 {
	if p.Number == nil {
		return 0
	}
	return *p.Number
}

// Minutes returns a number property rounded to whole minutes.
func (p Property) Minutes() int { return int(math.Round(p.Num())) }

func (p Property) Checked() bool { return p.Checkbox != nil && *p.Checkbox }

func (p Property) DateStart() string {
	if p.Date == nil {
		return ""
	}
	return p.Date.Start
}

func (p Property) SelectName() string {
	if p.Select == nil {
		return ""
	}
	return p.Select.Name
}

func (p Property) StatusName() string {
	if p.Status == nil {
		return ""
	}
	return p.Status.Name
}

// Titles returns the enriched titles of a relation, skipping unresolved ones.
func (p Property) Titles() []string {
	var out []string
	for _, r := range p.Relation {
		if r.Title != "" {
			out = append(out, r.Title)
		}
	}
	return out
}

// FirstTitle returns the first resolved relation title.
func (p Property) FirstTitle() string {
	t := p.Titles()
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

func (p Property) Names() []string {
	var out []string
	for _, o := range p.MultiSelect {
		out = append(out, o.Name)
	}
	return out
}

// Prop returns the named property, or a zero Property when absent.
func (pg Page) Prop(name string) Property {
	if pg.Properties == nil {
		return Property{}
	}
	return pg.Properties[name]
}
