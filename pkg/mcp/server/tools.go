// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stacklok/toolhive-core/httperr"

	"github.com/stacklok/wikiauth/pkg/capabilities"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
	"github.com/stacklok/wikiauth/pkg/wiki"
)

const maxPageSize = 100

type toolHandler func(ctx context.Context, actor wiki.Actor, req mcp.CallToolRequest) (any, error)

type toolDef struct {
	// capability is the operation key that must be granted.
	capability string
	tool       mcp.Tool
	handle     toolHandler
}

type collectionView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type documentView struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Title        string    `json:"title"`
	Text         string    `json:"text,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func viewCollection(c *storage.Collection) collectionView {
	return collectionView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedBy:   c.CreatedByID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func viewCollections(cs []*storage.Collection) []collectionView {
	out := make([]collectionView, 0, len(cs))
	for _, c := range cs {
		out = append(out, viewCollection(c))
	}
	return out
}

func viewDocument(d *storage.Document, withText bool) documentView {
	v := documentView{
		ID:           d.ID,
		CollectionID: d.CollectionID,
		Title:        d.Title,
		CreatedBy:    d.CreatedByID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if withText {
		v.Text = d.Text
	}
	return v
}

// Listings omit document bodies.
func viewDocuments(ds []*storage.Document) []documentView {
	out := make([]documentView, 0, len(ds))
	for _, d := range ds {
		out = append(out, viewDocument(d, false))
	}
	return out
}

func pageOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of results (1-%d)", maxPageSize))),
		mcp.WithNumber("offset", mcp.Description("Number of results to skip")),
	}
}

func newTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
}

func requiredString(name, description string) mcp.ToolOption {
	return mcp.WithString(name, mcp.Required(), mcp.Description(description))
}

func optionalString(name, description string) mcp.ToolOption {
	return mcp.WithString(name, mcp.Description(description))
}

// toolDefs returns every tool the server knows, keyed to its capability.
func toolDefs(svc *wiki.Service) []toolDef {
	return []toolDef{
		{
			capability: "collections.list",
			tool:       newTool("list_collections", "List the team's collections", pageOptions()...),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				cs, err := svc.ListCollections(ctx, a, page(req))
				return viewCollections(cs), err
			},
		},
		{
			capability: "collections.info",
			tool:       newTool("get_collection", "Get a collection by ID", requiredString("id", "Collection ID")),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				c, err := svc.GetCollection(ctx, a, req.GetString("id", ""))
				if err != nil {
					return nil, err
				}
				return viewCollection(c), nil
			},
		},
		{
			capability: "collections.create",
			tool: newTool("create_collection", "Create a collection",
				requiredString("name", "Collection name"),
				optionalString("description", "Collection description"),
			),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				c, err := svc.CreateCollection(ctx, a, wiki.CollectionInput{
					Name:        req.GetString("name", ""),
					Description: req.GetString("description", ""),
				})
				if err != nil {
					return nil, err
				}
				return viewCollection(c), nil
			},
		},
		{
			capability: "collections.update",
			tool: newTool("update_collection", "Update a collection's name or description",
				requiredString("id", "Collection ID"),
				optionalString("name", "New name"),
				optionalString("description", "New description"),
			),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				c, err := svc.UpdateCollection(ctx, a, req.GetString("id", ""), wiki.CollectionPatch{
					Name:        optional(req, "name"),
					Description: optional(req, "description"),
				})
				if err != nil {
					return nil, err
				}
				return viewCollection(c), nil
			},
		},
		{
			capability: "collections.delete",
			tool: newTool("delete_collection", "Delete a collection and all of its documents",
				requiredString("id", "Collection ID")),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				id := req.GetString("id", "")
				if err := svc.DeleteCollection(ctx, a, id); err != nil {
					return nil, err
				}
				return map[string]any{"id": id, "deleted": true}, nil
			},
		},
		{
			capability: "documents.list",
			tool: newTool("list_documents", "List documents, optionally within one collection",
				append(pageOptions(), optionalString("collection_id", "Restrict to this collection"))...),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				ds, err := svc.ListDocuments(ctx, a, req.GetString("collection_id", ""), page(req))
				return viewDocuments(ds), err
			},
		},
		{
			capability: "documents.info",
			tool:       newTool("get_document", "Get a document by ID, including its text", requiredString("id", "Document ID")),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				d, err := svc.GetDocument(ctx, a, req.GetString("id", ""))
				if err != nil {
					return nil, err
				}
				return viewDocument(d, true), nil
			},
		},
		{
			capability: "documents.search",
			tool: newTool("search_documents", "Search document titles and text",
				append(pageOptions(), requiredString("query", "Text to search for"))...),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				ds, err := svc.SearchDocuments(ctx, a, req.GetString("query", ""), page(req))
				return viewDocuments(ds), err
			},
		},
		{
			capability: "documents.create",
			tool: newTool("create_document", "Create a document in a collection",
				requiredString("collection_id", "Collection ID"),
				requiredString("title", "Document title"),
				optionalString("text", "Document body in Markdown"),
			),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				d, err := svc.CreateDocument(ctx, a, wiki.DocumentInput{
					CollectionID: req.GetString("collection_id", ""),
					Title:        req.GetString("title", ""),
					Text:         req.GetString("text", ""),
				})
				if err != nil {
					return nil, err
				}
				return viewDocument(d, true), nil
			},
		},
		{
			capability: "documents.update",
			tool: newTool("update_document", "Update a document's title or text",
				requiredString("id", "Document ID"),
				optionalString("title", "New title"),
				optionalString("text", "New body in Markdown"),
			),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				d, err := svc.UpdateDocument(ctx, a, req.GetString("id", ""), wiki.DocumentPatch{
					Title: optional(req, "title"),
					Text:  optional(req, "text"),
				})
				if err != nil {
					return nil, err
				}
				return viewDocument(d, true), nil
			},
		},
		{
			capability: "documents.delete",
			tool:       newTool("delete_document", "Delete a document", requiredString("id", "Document ID")),
			handle: func(ctx context.Context, a wiki.Actor, req mcp.CallToolRequest) (any, error) {
				id := req.GetString("id", "")
				if err := svc.DeleteDocument(ctx, a, id); err != nil {
					return nil, err
				}
				return map[string]any{"id": id, "deleted": true}, nil
			},
		},
	}
}

// optional returns a pointer to a string argument, or nil when absent.
func optional(req mcp.CallToolRequest, name string) *string {
	v, ok := req.GetArguments()[name].(string)
	if !ok {
		return nil
	}
	return &v
}

func page(req mcp.CallToolRequest) storage.Page {
	p := storage.Page{Limit: maxPageSize}
	if v, ok := req.GetArguments()["limit"].(float64); ok && v >= 1 && v <= maxPageSize {
		p.Limit = int(v)
	}
	if v, ok := req.GetArguments()["offset"].(float64); ok && v > 0 {
		p.Offset = int(v)
	}
	return p
}

// sessionTools builds the tools a grant unlocks. Each handler checks the
// scope again at call time.
func sessionTools(defs []toolDef, scopes []string) []mcpserver.ServerTool {
	enabled := make(map[string]bool)
	for _, key := range capabilities.Enabled(scopes) {
		enabled[key] = true
	}

	var out []mcpserver.ServerTool
	for _, d := range defs {
		if !enabled[d.capability] {
			continue
		}
		out = append(out, mcpserver.ServerTool{Tool: d.tool, Handler: wrap(d)})
	}
	return out
}

func wrap(d toolDef) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		grant, ok := GrantFromContext(ctx)
		if !ok || !capabilities.Allows(grant.Scopes, d.capability) {
			return nil, fmt.Errorf("tool '%s' not found", d.tool.Name)
		}

		out, err := d.handle(ctx, wiki.Actor{TeamID: grant.TeamID, UserID: grant.UserID}, req)
		if err != nil {
			return toolError(d.tool.Name, err), nil
		}

		body, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("encoding %s result: %w", d.tool.Name, err)
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func toolError(name string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		return mcp.NewToolResultError("already exists")
	case httperr.Code(err) == http.StatusBadRequest:
		return mcp.NewToolResultError(err.Error())
	default:
		logger.Errorw("tool call failed", "tool", name, "error", err)
		return mcp.NewToolResultError("internal error")
	}
}
