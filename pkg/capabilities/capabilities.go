// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package capabilities maps granted OAuth scopes to the wiki operations a
// token may see. The mapping is a static table evaluated as a pure function
// of the scope set; nothing here is cached or shared between tokens.
//
// Scopes form a privilege order: read < create < write. A bare scope such as
// "read" applies to every resource, while a resource-qualified scope such as
// "documents:read" applies to one resource only.
package capabilities

import (
	"slices"
	"sort"
	"strings"
)

// Level is a privilege class carried by a scope.
type Level int

// Privilege classes, in increasing order.
const (
	LevelNone Level = iota
	LevelRead
	LevelCreate
	LevelWrite
)

// Scope names for each privilege class.
const (
	ScopeRead   = "read"
	ScopeCreate = "create"
	ScopeWrite  = "write"
)

// Resources that operations act on.
const (
	ResourceCollections = "collections"
	ResourceDocuments   = "documents"
)

// Actions an operation performs.
const (
	ActionList   = "list"
	ActionInfo   = "info"
	ActionSearch = "search"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var levelNames = map[string]Level{
	ScopeRead:   LevelRead,
	ScopeCreate: LevelCreate,
	ScopeWrite:  LevelWrite,
}

var resources = []string{ResourceCollections, ResourceDocuments}

func (l Level) String() string {
	switch l {
	case LevelRead:
		return ScopeRead
	case LevelCreate:
		return ScopeCreate
	case LevelWrite:
		return ScopeWrite
	case LevelNone:
	}
	return "none"
}

// actionLevel is the minimum class needed for an action.
func actionLevel(action string) Level {
	switch action {
	case ActionList, ActionInfo, ActionSearch:
		return LevelRead
	case ActionCreate:
		return LevelCreate
	case ActionUpdate, ActionDelete:
		return LevelWrite
	}
	return LevelNone
}

// Operation is one externally callable capability.
type Operation struct {
	// Key is the stable identifier, "<resource>.<action>".
	Key      string
	Resource string
	Action   string
	Level    Level
}

func op(resource, action string) Operation {
	return Operation{
		Key:      resource + "." + action,
		Resource: resource,
		Action:   action,
		Level:    actionLevel(action),
	}
}

var operations = []Operation{
	op(ResourceCollections, ActionList),
	op(ResourceCollections, ActionInfo),
	op(ResourceCollections, ActionCreate),
	op(ResourceCollections, ActionUpdate),
	op(ResourceCollections, ActionDelete),
	op(ResourceDocuments, ActionList),
	op(ResourceDocuments, ActionInfo),
	op(ResourceDocuments, ActionSearch),
	op(ResourceDocuments, ActionCreate),
	op(ResourceDocuments, ActionUpdate),
	op(ResourceDocuments, ActionDelete),
}

// Operations returns every known operation.
func Operations() []Operation {
	return slices.Clone(operations)
}

// Lookup returns the operation with the given key.
func Lookup(key string) (Operation, bool) {
	for _, o := range operations {
		if o.Key == key {
			return o, true
		}
	}
	return Operation{}, false
}

// Scope is a parsed scope string.
type Scope struct {
	// Resource is empty for scopes that apply to every resource.
	Resource string
	Level    Level
}

// Parse parses "read", "create", "write" or "<resource>:<class>".
func Parse(s string) (Scope, bool) {
	resource, class, qualified := strings.Cut(s, ":")
	if !qualified {
		class, resource = resource, ""
	}
	level, ok := levelNames[class]
	if !ok {
		return Scope{}, false
	}
	if qualified && !slices.Contains(resources, resource) {
		return Scope{}, false
	}
	return Scope{Resource: resource, Level: level}, true
}

// String renders the scope in its wire form.
func (s Scope) String() string {
	if s.Resource == "" {
		return s.Level.String()
	}
	return s.Resource + ":" + s.Level.String()
}

// Covers reports whether s grants at least the privilege of other.
func (s Scope) Covers(other Scope) bool {
	if s.Resource != "" && s.Resource != other.Resource {
		return false
	}
	return s.Level >= other.Level
}

func (s Scope) allows(o Operation) bool {
	if s.Resource != "" && s.Resource != o.Resource {
		return false
	}
	return s.Level >= o.Level
}

// IsSupported reports whether s is a scope this server understands.
func IsSupported(s string) bool {
	_, ok := Parse(s)
	return ok
}

// Supported returns every scope string this server understands.
func Supported() []string {
	out := []string{ScopeRead, ScopeCreate, ScopeWrite}
	for _, r := range resources {
		for _, l := range []Level{LevelRead, LevelCreate, LevelWrite} {
			out = append(out, Scope{Resource: r, Level: l}.String())
		}
	}
	return out
}

// Enabled returns the sorted keys of every operation the scope set unlocks.
// Unknown scopes are ignored.
func Enabled(scopes []string) []string {
	parsed := parseAll(scopes)
	var keys []string
	for _, o := range operations {
		if anyAllows(parsed, o) {
			keys = append(keys, o.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Allows reports whether the scope set unlocks the operation with key.
func Allows(scopes []string, key string) bool {
	o, ok := Lookup(key)
	if !ok {
		return false
	}
	return anyAllows(parseAll(scopes), o)
}

func parseAll(scopes []string) []Scope {
	parsed := make([]Scope, 0, len(scopes))
	for _, s := range scopes {
		if sc, ok := Parse(s); ok {
			parsed = append(parsed, sc)
		}
	}
	return parsed
}

func anyAllows(scopes []Scope, o Operation) bool {
	for _, s := range scopes {
		if s.allows(o) {
			return true
		}
	}
	return false
}

// ScopeStrategy reports whether any scope in haystack covers needle. It has
// the shape of fosite.ScopeStrategy, so a client registered with "write" may
// request "read" or "documents:create".
func ScopeStrategy(haystack []string, needle string) bool {
	want, ok := Parse(needle)
	if !ok {
		return false
	}
	for _, h := range haystack {
		if have, ok := Parse(h); ok && have.Covers(want) {
			return true
		}
	}
	return false
}
