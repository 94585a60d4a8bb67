// Package notion implements the document store on top of the Notion API.
// Each record kind lives in its own Notion database.
package notion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/store"
	"github.com/josephgoksu/jenos-mcp/types"
)

// ErrMissingToken is returned when no integration token is configured.
var ErrMissingToken = errors.New("NOTION_TOKEN environment variable required")

// Store is a store.DocumentStore backed by Notion databases. It does not
// implement store.ConditionalTaskStore: Notion has no conditional page update.
type Store struct {
	client *notionapi.Client
	dbs    types.CollectionsConfig
}

var _ store.DocumentStore = (*Store)(nil)

// Option configures the Notion client.
type Option = notionapi.ClientOption

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return notionapi.WithHTTPClient(c)
}

// New creates a store for the given token and databases.
func New(token string, dbs types.CollectionsConfig, opts ...Option) (*Store, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return &Store{
		client: notionapi.NewClient(notionapi.Token(token), opts...),
		dbs:    dbs,
	}, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

// === Tasks ===

func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	props := notionapi.Properties{
		propName:     title(t.Title),
		propType:     selectOption(t.Type),
		propStatus:   selectOption(string(t.Status)),
		propPriority: selectOption(string(t.Priority)),
		propPayload:  richText(t.Payload),
	}
	if t.Target != "" {
		props[propTarget] = selectOption(t.Target)
	}

	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent:     databaseParent(s.dbs.RouterTasks),
		Properties: props,
	})
	if err != nil {
		return models.Task{}, classify(err)
	}
	t.ID = string(page.ID)
	t.CreatedAt = page.CreatedTime
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	page, err := s.client.Page.Get(ctx, notionapi.PageID(id))
	if err != nil {
		return models.Task{}, classify(err)
	}
	return taskFromPage(page), nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, u models.TaskUpdate) error {
	props := notionapi.Properties{
		propStatus: selectOption(string(u.Status)),
	}
	if u.ClaimedBy != nil {
		props[propClaimedBy] = richText(*u.ClaimedBy)
	}
	if u.ClaimedAt != nil {
		props[propClaimedAt] = dateTime(*u.ClaimedAt)
	}
	if u.Result != nil {
		props[propResult] = richText(*u.Result)
	}
	if u.ExecutionNotes != nil {
		props[propExecutionNotes] = richText(*u.ExecutionNotes)
	}
	if u.CompletedAt != nil {
		props[propCompletedAt] = dateTime(*u.CompletedAt)
	}

	_, err := s.client.Page.Update(ctx, notionapi.PageID(id), &notionapi.PageUpdateRequest{Properties: props})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) QueryTasks(ctx context.Context, q models.TaskQuery) (models.TaskPage, error) {
	filters := notionapi.AndCompoundFilter{
		notionapi.PropertyFilter{Property: propStatus, Select: &notionapi.SelectFilterCondition{Equals: string(q.Status)}},
	}
	if q.Type != "" {
		filters = append(filters, notionapi.PropertyFilter{Property: propType, Select: &notionapi.SelectFilterCondition{Equals: q.Type}})
	}

	resp, err := s.client.Database.Query(ctx, notionapi.DatabaseID(s.dbs.RouterTasks), &notionapi.DatabaseQueryRequest{
		Filter:   filters,
		Sorts:    []notionapi.SortObject{{Property: propCreated, Direction: notionapi.SortOrderASC}},
		PageSize: q.Limit,
	})
	if err != nil {
		return models.TaskPage{}, classify(err)
	}

	page := models.TaskPage{Tasks: make([]models.Task, 0, len(resp.Results)), HasMore: resp.HasMore}
	for i := range resp.Results {
		page.Tasks = append(page.Tasks, taskFromPage(&resp.Results[i]))
	}
	return page, nil
}

func taskFromPage(page *notionapi.Page) models.Task {
	p := page.Properties
	t := models.Task{
		ID:             string(page.ID),
		Title:          readTitle(p, propName),
		Type:           readSelect(p, propType),
		Status:         models.TaskStatus(readSelect(p, propStatus)),
		Priority:       models.TaskPriority(readSelect(p, propPriority)),
		Payload:        readRichText(p, propPayload),
		Target:         readSelect(p, propTarget),
		ClaimedBy:      readRichText(p, propClaimedBy),
		ClaimedAt:      readDate(p, propClaimedAt),
		Result:         readRichText(p, propResult),
		ExecutionNotes: readRichText(p, propExecutionNotes),
		CompletedAt:    readDate(p, propCompletedAt),
		CreatedAt:      readCreatedTime(page),
	}
	if t.Title == "" {
		t.Title = "Untitled"
	}
	if t.Type == "" {
		t.Type = "UNKNOWN"
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormal
	}
	return t
}

// === Records ===

// CreateArtifact stores an artifact. Content drafts go to the content queue
// database when one is configured.
func (s *Store) CreateArtifact(ctx context.Context, a models.Artifact) (models.CreatedRecord, error) {
	db := s.dbs.Artifacts
	if a.Type == models.ArtifactTypeContentDraft && s.dbs.ContentQueue != "" {
		db = s.dbs.ContentQueue
	}
	return s.createPage(ctx, db, notionapi.Properties{
		propArtifactName: title(a.Name),
		propType:         selectOption(a.Type),
		propContent:      richText(a.Content),
		propDepartment:   selectOption(a.Department),
		propStatus:       selectOption(a.Status),
		propTags:         multiSelect(a.Tags),
		propCreatedBy:    richText(a.CreatedBy),
	})
}

func (s *Store) CreatePattern(ctx context.Context, p models.Pattern) (models.CreatedRecord, error) {
	props := notionapi.Properties{
		propName:         title(p.Name),
		propType:         selectOption(p.Type),
		propDescription:  richText(p.Description),
		propSource:       richText(p.Source),
		propDateCaptured: dateOnly(p.DateCaptured),
	}
	if p.Application != "" {
		props[propApplication] = richText(p.Application)
	}
	return s.createPage(ctx, s.dbs.Patterns, props)
}

// CreateSession stores a session. The Sessions database has no column for
// produced artifacts, so Session.Artifacts is not written.
func (s *Store) CreateSession(ctx context.Context, ss models.Session) (models.CreatedRecord, error) {
	return s.createPage(ctx, s.dbs.Sessions, notionapi.Properties{
		propTitle:      title(ss.Title),
		propMode:       selectOption(ss.Mode),
		propSummary:    richText(ss.Summary),
		propOutcomeTag: selectOption(ss.OutcomeTag),
		propDate:       dateOnly(ss.Date),
	})
}

func (s *Store) QueryKnowledge(ctx context.Context, q models.KnowledgeQuery) ([]models.Knowledge, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: q.Limit}
	if q.Domain != "" {
		req.Filter = notionapi.PropertyFilter{Property: propDomain, Select: &notionapi.SelectFilterCondition{Equals: q.Domain}}
	}
	resp, err := s.client.Database.Query(ctx, notionapi.DatabaseID(s.dbs.SystemKnowledge), req)
	if err != nil {
		return nil, classify(err)
	}

	out := make([]models.Knowledge, 0, len(resp.Results))
	for _, page := range resp.Results {
		out = append(out, models.Knowledge{
			ID:        string(page.ID),
			Name:      readTitle(page.Properties, propName),
			Domain:    readSelect(page.Properties, propDomain),
			Summary:   readRichText(page.Properties, propCompactSummary),
			SourceURL: readURL(page.Properties, propSourceURL),
		})
	}
	return out, nil
}

func (s *Store) createPage(ctx context.Context, databaseID string, props notionapi.Properties) (models.CreatedRecord, error) {
	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent:     databaseParent(databaseID),
		Properties: props,
	})
	if err != nil {
		return models.CreatedRecord{}, classify(err)
	}
	id := string(page.ID)
	return models.CreatedRecord{ID: id, URL: PageURL(id)}, nil
}

// === Health ===

// Health checks the token with users/me, then retrieves every configured
// database. Databases are only probed once the token is accepted.
func (s *Store) Health(ctx context.Context) store.HealthReport {
	report := store.HealthReport{Collections: map[string]bool{}}
	if _, err := s.client.User.Me(ctx); err != nil {
		report.Error = err.Error()
		return report
	}
	report.Reachable = true

	for _, c := range s.collections() {
		if c.id == "" {
			continue
		}
		_, err := s.client.Database.Get(ctx, notionapi.DatabaseID(c.id))
		report.Collections[c.name] = err == nil
	}
	return report
}

type collection struct{ name, id string }

func (s *Store) collections() []collection {
	return []collection{
		{store.CollectionRouterTasks, s.dbs.RouterTasks},
		{store.CollectionArtifacts, s.dbs.Artifacts},
		{store.CollectionPatterns, s.dbs.Patterns},
		{store.CollectionSessions, s.dbs.Sessions},
		{store.CollectionSystemKnowledge, s.dbs.SystemKnowledge},
		{store.CollectionContentQueue, s.dbs.ContentQueue},
	}
}

func databaseParent(id string) notionapi.Parent {
	return notionapi.Parent{Type: notionapi.ParentTypeDatabaseID, DatabaseID: notionapi.DatabaseID(id)}
}

func dateOnly(t time.Time) notionapi.DateProperty {
	y, m, d := t.UTC().Date()
	return dateTime(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// notFoundError keeps the API message verbatim while matching store.ErrNotFound.
type notFoundError struct{ err error }

func (e notFoundError) Error() string        { return e.err.Error() }
func (e notFoundError) Unwrap() error        { return e.err }
func (e notFoundError) Is(target error) bool { return target == store.ErrNotFound }

// classify marks 404 responses as not found. Every other error is returned
// unchanged.
func classify(err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return notFoundError{err: err}
	}
	return err
}

