package notion

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Property names of the Jen OS databases.
const (
	propName           = "Name"
	propType           = "Type"
	propStatus         = "Status"
	propPriority       = "Priority"
	propPayload        = "Payload"
	propTarget         = "Target"
	propClaimedBy      = "Claimed By"
	propClaimedAt      = "Claimed At"
	propResult         = "Result"
	propExecutionNotes = "Execution Notes"
	propCompletedAt    = "Completed At"
	propCreated        = "Created"

	propArtifactName = "Artifact Name"
	propContent      = "Content"
	propDepartment   = "Department"
	propTags         = "Tags"
	propCreatedBy    = "Created By"

	propDescription  = "Description"
	propSource       = "Source"
	propDateCaptured = "Date Captured"
	propApplication  = "Application"

	propTitle      = "Title"
	propMode       = "Mode"
	propSummary    = "Summary"
	propOutcomeTag = "Outcome Tag"
	propDate       = "Date"

	propDomain         = "Domain"
	propCompactSummary = "Compact Summary"
	propSourceURL      = "Source URL"
)

func title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}}
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}}
}

func selectOption(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

func multiSelect(names []string) notionapi.MultiSelectProperty {
	opts := make([]notionapi.Option, 0, len(names))
	for _, n := range names {
		opts = append(opts, notionapi.Option{Name: n})
	}
	return notionapi.MultiSelectProperty{MultiSelect: opts}
}

func dateTime(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// plainText joins the plain text of every rich text segment.
func plainText(segments []notionapi.RichText) string {
	var b strings.Builder
	for _, s := range segments {
		if s.PlainText != "" {
			b.WriteString(s.PlainText)
		} else if s.Text != nil {
			b.WriteString(s.Text.Content)
		}
	}
	return b.String()
}

func readTitle(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case notionapi.TitleProperty:
		return plainText(p.Title)
	}
	return ""
}

func readRichText(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	}
	return ""
}

func readSelect(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.SelectProperty:
		return p.Select.Name
	case notionapi.SelectProperty:
		return p.Select.Name
	}
	return ""
}

func readURL(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.URLProperty:
		return p.URL
	case notionapi.URLProperty:
		return p.URL
	}
	return ""
}

func readDate(props notionapi.Properties, name string) *time.Time {
	var obj *notionapi.DateObject
	switch p := props[name].(type) {
	case *notionapi.DateProperty:
		obj = p.Date
	case notionapi.DateProperty:
		obj = p.Date
	}
	if obj == nil || obj.Start == nil {
		return nil
	}
	t := time.Time(*obj.Start)
	return &t
}

func readCreatedTime(page *notionapi.Page) time.Time {
	switch p := page.Properties[propCreated].(type) {
	case *notionapi.CreatedTimeProperty:
		return p.CreatedTime
	case notionapi.CreatedTimeProperty:
		return p.CreatedTime
	}
	return page.CreatedTime
}

// PageURL is the public notion.so URL of a page id.
func PageURL(id string) string {
	return "https://notion.so/" + strings.ReplaceAll(id, "-", "")
}
