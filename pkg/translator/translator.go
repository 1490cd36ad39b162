//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package translator lowers pkg/kernel values into the JSON-shaped input
// document the Policy DSL's generated Rego expects. It is the only
// package, besides pkg/engine and internal/dsl themselves, that is
// allowed to know the wire shape Rego sees — every bounded context stays
// on the kernel side of this boundary.
package translator

import (
	"github.com/hodei/authzcore/pkg/kernel"
)

// EntityInput is the per-entity shape the generated Rego references as
// input.principal / input.resource (see internal/dsl's renderPath).
type EntityInput struct {
	UID     string                 `json:"uid"`
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs"`
	Parents []string               `json:"parents"`
}

// ActionInput is the shape the generated Rego references as input.action.
type ActionInput struct {
	UID   string                 `json:"uid"`
	Attrs map[string]interface{} `json:"attrs"`
}

// Input is the full document passed to rego.Ast.Evaluate for one
// AuthorizationRequest.
type Input struct {
	Principal EntityInput            `json:"principal"`
	Action    ActionInput            `json:"action"`
	Resource  EntityInput            `json:"resource"`
	Context   map[string]interface{} `json:"context"`
}

// TranslateAttributeValue converts a kernel.AttributeValue into the plain
// Go value (bool, int64, string, []interface{}, map[string]interface{})
// that encoding/json and the Rego input document expect.
func TranslateAttributeValue(v kernel.AttributeValue) (interface{}, error) {
	switch v.Kind() {
	case kernel.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case kernel.KindLong:
		n, _ := v.AsLong()
		return n, nil
	case kernel.KindString:
		s, _ := v.AsString()
		return s, nil
	case kernel.KindEntityRef:
		h, _ := v.AsEntityRef()
		return h.EntityUID(), nil
	case kernel.KindSet:
		elems, _ := v.AsSet()
		out := make([]interface{}, 0, len(elems))
		for _, e := range elems {
			tv, err := TranslateAttributeValue(e)
			if err != nil {
				return nil, err
			}
			out = append(out, tv)
		}
		return out, nil
	case kernel.KindRecord:
		rec, _ := v.AsRecord()
		out := make(map[string]interface{}, len(rec))
		for k, e := range rec {
			tv, err := TranslateAttributeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = tv
		}
		return out, nil
	default:
		return nil, &kernel.TranslationError{Kind: kernel.TranslationUnsupportedType, Reason: "unrecognized attribute kind"}
	}
}

func translateAttrs(attrs map[kernel.AttributeName]kernel.AttributeValue) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(attrs))
	for name, v := range attrs {
		tv, err := TranslateAttributeValue(v)
		if err != nil {
			return nil, &kernel.TranslationError{Kind: kernel.TranslationInvalidAttributeValue, Reason: err.Error()}
		}
		out[string(name)] = tv
	}
	return out, nil
}

// TranslateToDSLEntity lowers a kernel.HodeiEntity into an EntityInput,
// the shape the generated Rego addresses as input.principal/input.resource.
func TranslateToDSLEntity(e kernel.HodeiEntity) (EntityInput, error) {
	if e == nil {
		return EntityInput{}, &kernel.TranslationError{Kind: kernel.TranslationInvalidEntity, Reason: "entity is nil"}
	}
	attrs, err := translateAttrs(e.Attributes())
	if err != nil {
		return EntityInput{}, err
	}
	parents := make([]string, 0, len(e.Parents()))
	for _, p := range e.Parents() {
		parents = append(parents, p.EntityUID())
	}
	return EntityInput{
		UID:     e.EntityHRN().EntityUID(),
		Type:    string(e.TypeName()),
		Attrs:   attrs,
		Parents: parents,
	}, nil
}

// TranslateAction lowers a kernel.ActionType into an ActionInput. Actions
// have no attributes of their own in this core; the empty Attrs map keeps
// the generated Rego's input.action.attrs.* references well-defined
// rather than undefined.
func TranslateAction(a kernel.ActionType) ActionInput {
	return ActionInput{UID: a.UID(), Attrs: map[string]interface{}{}}
}

// TranslateContext lowers the request's context attribute map into the
// plain-value map the generated Rego addresses as input.context.*.
func TranslateContext(ctx map[kernel.AttributeName]kernel.AttributeValue) (map[string]interface{}, error) {
	if ctx == nil {
		return map[string]interface{}{}, nil
	}
	return translateAttrs(ctx)
}

// TranslateRequest lowers a full kernel.AuthorizationRequest into the
// Input document evaluated against a compiled policy set.
func TranslateRequest(req kernel.AuthorizationRequest) (Input, error) {
	principal, err := TranslateToDSLEntity(req.Principal)
	if err != nil {
		return Input{}, err
	}
	resource, err := TranslateToDSLEntity(req.Resource)
	if err != nil {
		return Input{}, err
	}
	ctx, err := TranslateContext(req.Context)
	if err != nil {
		return Input{}, err
	}
	return Input{
		Principal: principal,
		Action:    TranslateAction(req.Action),
		Resource:  resource,
		Context:   ctx,
	}, nil
}
