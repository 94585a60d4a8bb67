package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/types"
)

// Content drafts are artifacts with these fixed attributes.
const (
	DraftType        = models.ArtifactTypeContentDraft
	DraftDepartment  = "Content_Engine"
	DraftQueueTag    = "content-queue"
	DraftStatus      = "NEEDS_REVIEW"
	DefaultChannel   = "Substack"
	DeltaPatternType = "Delta"
	deltaNameRunes   = 50
)

// RecordApp creates the create-only records: artifacts, patterns, sessions,
// content drafts and deltas, and reads knowledge notes.
type RecordApp struct {
	ctx *Context
}

// NewRecordApp creates a record application service.
func NewRecordApp(ctx *Context) *RecordApp {
	return &RecordApp{ctx: ctx}
}

// CreateArtifact moderates the content and stores a Draft artifact. A
// moderation failure is returned in-band with Success=false and nothing is
// written.
func (a *RecordApp) CreateArtifact(ctx context.Context, p types.CreateArtifactParams) (*types.CreateArtifactResponse, error) {
	if err := requireFields(field{"name", p.Name}, field{"type", p.Type}, field{"content", p.Content}); err != nil {
		return nil, err
	}
	if res := a.ctx.Content.Validate(p.Content); !res.IsValid {
		return &types.CreateArtifactResponse{Success: false, Error: res.Message}, nil
	}

	department := p.Department
	if department == "" {
		department = models.DefaultDepartment
	}
	artifact := models.Artifact{
		Name:       p.Name,
		Type:       p.Type,
		Content:    models.Truncate(p.Content, models.MaxFieldLength),
		Department: department,
		Status:     models.DefaultArtifactStatus,
		Tags:       p.Tags,
		CreatedBy:  models.DefaultCreatedBy,
		CreatedAt:  a.ctx.now().UTC(),
	}
	if err := models.ValidateStruct(artifact); err != nil {
		return nil, types.NewMCPError(types.CodeValidation, err.Error(), nil)
	}

	rec, err := a.ctx.Store.CreateArtifact(ctx, artifact)
	if err != nil {
		return nil, types.WrapUpstream("create_artifact", err)
	}
	return &types.CreateArtifactResponse{
		Success:    true,
		ArtifactID: rec.ID,
		Name:       p.Name,
		URL:        rec.URL,
	}, nil
}

// QueueContentDraft stores content as a draft artifact awaiting review.
func (a *RecordApp) QueueContentDraft(ctx context.Context, p types.QueueContentDraftParams) (*types.QueueContentDraftResponse, error) {
	if err := requireFields(field{"title", p.Title}, field{"content", p.Content}, field{"source", p.Source}); err != nil {
		return nil, err
	}
	channel := p.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	if res := a.ctx.Content.Validate(p.Content); !res.IsValid {
		return &types.QueueContentDraftResponse{
			CreateArtifactResponse: types.CreateArtifactResponse{Success: false, Error: res.Message},
		}, nil
	}

	tags := append([]string{DraftQueueTag, strings.ToLower(channel)}, p.Tags...)
	created, err := a.CreateArtifact(ctx, types.CreateArtifactParams{
		Name:       p.Title,
		Type:       DraftType,
		Content:    fmt.Sprintf("Source: %s\nChannel: %s\n\n%s", p.Source, channel, p.Content),
		Department: DraftDepartment,
		Tags:       tags,
	})
	if err != nil {
		return nil, err
	}
	return &types.QueueContentDraftResponse{
		CreateArtifactResponse: *created,
		Channel:                channel,
		Status:                 DraftStatus,
	}, nil
}

// LogPattern moderates the description and stores a pattern captured today.
func (a *RecordApp) LogPattern(ctx context.Context, p types.LogPatternParams) (*types.LogPatternResponse, error) {
	if err := requireFields(field{"name", p.Name}, field{"type", p.Type}, field{"description", p.Description}, field{"source", p.Source}); err != nil {
		return nil, err
	}
	if res := a.ctx.Content.Validate(p.Description); !res.IsValid {
		return &types.LogPatternResponse{Success: false, Error: res.Message}, nil
	}

	pattern := models.Pattern{
		Name:         p.Name,
		Type:         p.Type,
		Description:  models.Truncate(p.Description, models.MaxFieldLength),
		Source:       p.Source,
		Application:  p.Application,
		DateCaptured: a.ctx.now().UTC(),
	}
	rec, err := a.ctx.Store.CreatePattern(ctx, pattern)
	if err != nil {
		return nil, types.WrapUpstream("log_pattern", err)
	}
	return &types.LogPatternResponse{Success: true, PatternID: rec.ID, Name: p.Name}, nil
}

// LogDelta records a learning delta as a Delta pattern applying to domain.
func (a *RecordApp) LogDelta(ctx context.Context, p types.LogDeltaParams) (*types.LogPatternResponse, error) {
	if err := requireFields(field{"description", p.Description}, field{"domain", p.Domain}); err != nil {
		return nil, err
	}
	source := p.Source
	if source == "" {
		source = models.DefaultCreatedBy
	}
	return a.LogPattern(ctx, types.LogPatternParams{
		Name:        DeltaName(p.Description),
		Type:        DeltaPatternType,
		Description: p.Description,
		Source:      source,
		Application: p.Domain,
	})
}

// DeltaName is the pattern name of a delta: the first 50 code points of the
// description followed by an ellipsis.
func DeltaName(description string) string {
	if utf8.RuneCountInString(description) > deltaNameRunes {
		description = models.Truncate(description, deltaNameRunes)
	}
	return "Delta: " + description + "..."
}

// LogSession moderates the summary and stores a session dated today.
func (a *RecordApp) LogSession(ctx context.Context, p types.LogSessionParams) (*types.LogSessionResponse, error) {
	if err := requireFields(field{"title", p.Title}, field{"mode", p.Mode}, field{"summary", p.Summary}); err != nil {
		return nil, err
	}
	if res := a.ctx.Content.Validate(p.Summary); !res.IsValid {
		return &types.LogSessionResponse{Success: false, Error: res.Message}, nil
	}

	outcome := p.OutcomeTag
	if outcome == "" {
		outcome = models.DefaultOutcomeTag
	}
	session := models.Session{
		Title:      p.Title,
		Mode:       p.Mode,
		Summary:    models.Truncate(p.Summary, models.MaxFieldLength),
		Artifacts:  p.Artifacts,
		OutcomeTag: outcome,
		Date:       a.ctx.now().UTC(),
	}
	rec, err := a.ctx.Store.CreateSession(ctx, session)
	if err != nil {
		return nil, types.WrapUpstream("log_session", err)
	}
	return &types.LogSessionResponse{Success: true, SessionID: rec.ID, Title: p.Title, OutcomeTag: outcome}, nil
}

// QueryKnowledge lists knowledge notes, optionally for one domain.
func (a *RecordApp) QueryKnowledge(ctx context.Context, p types.QueryKnowledgeParams) (*types.QueryKnowledgeResponse, error) {
	notes, err := a.ctx.Store.QueryKnowledge(ctx, models.KnowledgeQuery{
		Domain: p.Domain,
		Limit:  models.ClampLimit(p.Limit),
	})
	if err != nil {
		return nil, types.WrapUpstream("query_knowledge", err)
	}

	out := make([]types.KnowledgeEntry, 0, len(notes))
	for _, k := range notes {
		name := k.Name
		if name == "" {
			name = "Untitled"
		}
		out = append(out, types.KnowledgeEntry{
			ID:      k.ID,
			Name:    name,
			Domain:  k.Domain,
			Summary: k.Summary,
			Source:  k.SourceURL,
		})
	}
	return &types.QueryKnowledgeResponse{Count: len(out), Knowledge: out}, nil
}

type field struct{ name, value string }

// requireFields reports the first empty field.
func requireFields(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return types.NewValidationError(f.name, f.name+" is required")
		}
	}
	return nil
}
