package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/tier"
	"github.com/ryanlack616/howell-brain/pkg/urgency"
)

var (
	bootstrapToolName    = "howell_bootstrap"
	bootstrapDescription = "Load the agent's memory at the start of a session: identity, knowledge graph, recent sessions, pinned memories, consolidation urgency, and any warnings raised while loading. Call this before any other howell tool."

	statusToolName    = "howell_status"
	statusDescription = "Report record counts per memory tier, the current consolidation urgency, and integrity issues."

	addObservationToolName    = "howell_add_observation"
	addObservationDescription = "Record a fact about an entity in the knowledge graph. The entity is created if it does not exist. Repeating an observation the entity already has is a no-op."

	addRelationToolName    = "howell_add_relation"
	addRelationDescription = "Record a directed relation between two entities, for example 'Ryan works_on howell'. Missing entities are created."

	removeRelationToolName    = "howell_remove_relation"
	removeRelationDescription = "Remove a directed relation between two entities. Removing a relation that does not exist is a no-op."

	endSessionToolName    = "howell_end_session"
	endSessionDescription = "Record the narrative of the session that is ending, with the lessons learned. Older sessions are summarized into warm memory when hot memory is full. Set pin to keep the session in core memory indefinitely."

	pinToolName    = "howell_pin"
	pinDescription = "Keep a memory in core memory indefinitely. Pinning a title that is already pinned changes nothing."

	readTierToolName    = "howell_read_tier"
	readTierDescription = "Read one memory tier: hot (recent full sessions), warm (one-line summaries), cold (archived sessions), or core (pinned memories)."

	queryToolName    = "howell_query"
	queryDescription = "Search memory for a phrase. Results are grouped into knowledge graph entities, sessions, pinned memories, and procedures."

	snapshotToolName    = "howell_snapshot"
	snapshotDescription = "Record that memory was consolidated now. Consolidation urgency is measured against the most recent snapshot."
)

// BootstrapInput represents the input arguments for the howell_bootstrap tool.
type BootstrapInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"reload memory from disk instead of returning the context of the last bootstrap"`
}

// StatusInput takes no arguments.
type StatusInput struct{}

// ObservationInput represents the input arguments for howell_add_observation.
type ObservationInput struct {
	Entity string `json:"entity" jsonschema:"the entity name"`
	Kind   string `json:"kind,omitempty" jsonschema:"the entity kind, used only when the entity is created"`
	Text   string `json:"text" jsonschema:"the observation text"`
}

// RelationInput represents the input arguments for the relation tools.
type RelationInput struct {
	From string `json:"from" jsonschema:"the source entity"`
	Type string `json:"type" jsonschema:"the relation type, for example works_on"`
	To   string `json:"to" jsonschema:"the target entity"`
}

// EndSessionInput represents the input arguments for howell_end_session.
type EndSessionInput struct {
	Narrative string   `json:"narrative" jsonschema:"what happened in the session"`
	Learned   []string `json:"learned,omitempty" jsonschema:"lessons learned, one per entry"`
	Pin       bool     `json:"pin,omitempty" jsonschema:"also keep the session in core memory"`
	PinTitle  string   `json:"pin_title,omitempty" jsonschema:"title of the pinned memory, defaults to the session title"`
	PinReason string   `json:"pin_reason,omitempty" jsonschema:"why the session is pinned"`
}

// PinInput represents the input arguments for howell_pin.
type PinInput struct {
	Title  string `json:"title" jsonschema:"a unique title for the memory"`
	Text   string `json:"text" jsonschema:"the memory text"`
	Reason string `json:"reason,omitempty" jsonschema:"why the memory is worth keeping"`
}

// ReadTierInput represents the input arguments for howell_read_tier.
type ReadTierInput struct {
	Tier string `json:"tier" jsonschema:"one of hot, warm, cold, core"`
}

// ReadTierOutput holds the records of one tier and their markdown rendering.
type ReadTierOutput struct {
	Tier     tier.Tier     `json:"tier"`
	Contents tier.Contents `json:"contents"`
	Markdown string        `json:"markdown"`
}

// QueryInput represents the input arguments for howell_query.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the phrase to search for"`
}

// SnapshotInput represents the input arguments for howell_snapshot.
type SnapshotInput struct {
	Note string `json:"note,omitempty" jsonschema:"what was consolidated"`
}

func (s *Server) handleBootstrap(ctx context.Context, _ *mcp.CallToolRequest, input BootstrapInput) (*mcp.CallToolResult, brain.Context, error) {
	bc := s.config.Brain.Last()
	if input.Refresh || bc == nil {
		var err error
		bc, err = s.config.Brain.Bootstrap(ctx)
		if err != nil {
			return toolError("Bootstrap failed: %v", err), brain.Context{}, nil
		}
	}
	return toolResult(*bc)
}

func (s *Server) handleStatus(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, brain.Status, error) {
	st, err := s.config.Brain.Status()
	if err != nil {
		return toolError("Status failed: %v", err), brain.Status{}, nil
	}
	return toolResult(*st)
}

func (s *Server) handleAddObservation(_ context.Context, _ *mcp.CallToolRequest, input ObservationInput) (*mcp.CallToolResult, brain.ObservationResult, error) {
	res, err := s.config.Brain.AddObservation(input.Entity, input.Kind, input.Text)
	if err != nil {
		return toolError("Adding observation failed: %v", err), brain.ObservationResult{}, nil
	}
	return toolResult(res)
}

func (s *Server) handleAddRelation(_ context.Context, _ *mcp.CallToolRequest, input RelationInput) (*mcp.CallToolResult, brain.RelationResult, error) {
	res, err := s.config.Brain.AddRelation(input.From, input.Type, input.To)
	if err != nil {
		return toolError("Adding relation failed: %v", err), brain.RelationResult{}, nil
	}
	return toolResult(res)
}

func (s *Server) handleRemoveRelation(_ context.Context, _ *mcp.CallToolRequest, input RelationInput) (*mcp.CallToolResult, brain.RelationResult, error) {
	res, err := s.config.Brain.RemoveRelation(input.From, input.Type, input.To)
	if err != nil {
		return toolError("Removing relation failed: %v", err), brain.RelationResult{}, nil
	}
	return toolResult(res)
}

func (s *Server) handleEndSession(ctx context.Context, _ *mcp.CallToolRequest, input EndSessionInput) (*mcp.CallToolResult, brain.SessionResult, error) {
	res, err := s.config.Brain.RecordSessionEnd(ctx, tier.SessionInput{
		Narrative: input.Narrative,
		Learned:   input.Learned,
		Pin:       input.Pin,
		PinTitle:  input.PinTitle,
		PinReason: input.PinReason,
	})
	if err != nil {
		return toolError("Recording session failed: %v", err), brain.SessionResult{}, nil
	}
	for _, w := range res.Warnings {
		s.config.Logger.Warn("session recorded with warning", "stage", w.Stage, "message", w.Message)
	}
	return toolResult(*res)
}

func (s *Server) handlePin(_ context.Context, _ *mcp.CallToolRequest, input PinInput) (*mcp.CallToolResult, tier.PinResult, error) {
	res, err := s.config.Brain.PinMemory(input.Title, input.Text, input.Reason)
	if err != nil {
		return toolError("Pinning failed: %v", err), tier.PinResult{}, nil
	}
	return toolResult(res)
}

func (s *Server) handleReadTier(_ context.Context, _ *mcp.CallToolRequest, input ReadTierInput) (*mcp.CallToolResult, ReadTierOutput, error) {
	t, err := tier.Parse(input.Tier)
	if err != nil {
		return toolError("%v", err), ReadTierOutput{}, nil
	}
	contents, err := s.config.Brain.ReadTier(t)
	if err != nil {
		return toolError("Reading tier failed: %v", err), ReadTierOutput{}, nil
	}
	return toolResult(ReadTierOutput{
		Tier:     t,
		Contents: contents,
		Markdown: tier.Render(t, contents),
	})
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, search.Results, error) {
	if input.Query == "" {
		return toolError("query is required"), search.Results{}, nil
	}
	res, err := s.config.Brain.Search(ctx, input.Query)
	if err != nil {
		return toolError("Search failed: %v", err), search.Results{}, nil
	}
	return toolResult(res)
}

func (s *Server) handleSnapshot(_ context.Context, _ *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, urgency.Snapshot, error) {
	snap, err := s.config.Brain.SaveConsolidationSnapshot(input.Note)
	if err != nil {
		return toolError("Saving snapshot failed: %v", err), urgency.Snapshot{}, nil
	}
	return toolResult(snap)
}
