//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package memory provides in-memory, map-backed implementations of
// pkg/identity's UserFinder, GroupFinder, and PolicyFinder ports, for
// tests and for small deployments that don't need a durable identity
// store.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hodei/authzcore/pkg/identity"
	"github.com/hodei/authzcore/pkg/kernel"
)

// Entity is a plain, serializable kernel.HodeiEntity used to seed the
// in-memory store from fixtures.
type Entity struct {
	HRN        kernel.HRN
	Type       kernel.ResourceTypeName
	Svc        kernel.ServiceName
	Attrs      map[kernel.AttributeName]kernel.AttributeValue
	ParentHRNs []kernel.HRN
}

func (e Entity) TypeName() kernel.ResourceTypeName                     { return e.Type }
func (e Entity) Service() kernel.ServiceName                           { return e.Svc }
func (e Entity) EntityHRN() kernel.HRN                                 { return e.HRN }
func (e Entity) Attributes() map[kernel.AttributeName]kernel.AttributeValue { return e.Attrs }
func (e Entity) Parents() []kernel.HRN                                 { return e.ParentHRNs }

// Store is a single in-memory repository backing all three of
// pkg/identity's ports. A zero-value Store is ready to use.
type Store struct {
	mu       sync.RWMutex
	users    map[kernel.HRN]Entity
	groups   map[kernel.HRN]Entity
	policies map[kernel.HRN][]string
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[kernel.HRN]Entity),
		groups:   make(map[kernel.HRN]Entity),
		policies: make(map[kernel.HRN][]string),
	}
}

// PutUser registers or replaces a user entity.
func (s *Store) PutUser(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[e.HRN] = e
}

// PutGroup registers or replaces a group entity.
func (s *Store) PutGroup(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[e.HRN] = e
}

// AttachPolicy appends a Policy DSL source text to the given principal or
// group HRN's direct attachments.
func (s *Store) AttachPolicy(hrn kernel.HRN, policySource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[hrn] = append(s.policies[hrn], policySource)
}

// FixtureError reports a malformed YAML fixture document passed to LoadYAML.
type FixtureError struct {
	Reason string
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("identity fixture error: %s", e.Reason)
}

// fixtures is the YAML document shape consumed by LoadYAML, mirroring the
// teacher's policy-domain YAML fixtures (mrn/name-keyed lists under a
// top-level grouping) adapted to this package's User/Group/Policy shapes.
type fixtures struct {
	Users  []entityFixture `yaml:"users"`
	Groups []entityFixture `yaml:"groups"`
	Grants []policyFixture `yaml:"policies"`
}

type entityFixture struct {
	HRN        string                 `yaml:"hrn"`
	Type       string                 `yaml:"type"`
	Service    string                 `yaml:"service"`
	Attributes map[string]interface{} `yaml:"attributes"`
	Parents    []string               `yaml:"parents"`
}

type policyFixture struct {
	Principal string `yaml:"principal"`
	Source    string `yaml:"source"`
}

// LoadYAML parses a fixture document of the form:
//
//	users:
//	  - hrn: "hrn:aws:iam::123456789012:user/alice"
//	    type: User
//	    service: iam
//	    attributes:
//	      department: engineering
//	    parents:
//	      - "hrn:aws:iam::123456789012:group/admins"
//	groups:
//	  - hrn: "hrn:aws:iam::123456789012:group/admins"
//	    type: Group
//	    service: iam
//	policies:
//	  - principal: "hrn:aws:iam::123456789012:user/alice"
//	    source: |
//	      permit(principal, action, resource);
//
// and populates s with the resulting users, groups, and policy attachments.
func (s *Store) LoadYAML(data []byte) error {
	var doc fixtures
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &FixtureError{Reason: err.Error()}
	}

	for _, ef := range doc.Users {
		e, err := ef.toEntity()
		if err != nil {
			return err
		}
		s.PutUser(e)
	}
	for _, ef := range doc.Groups {
		e, err := ef.toEntity()
		if err != nil {
			return err
		}
		s.PutGroup(e)
	}
	for _, pf := range doc.Grants {
		hrn, err := kernel.ParseHRN(pf.Principal)
		if err != nil {
			return &FixtureError{Reason: err.Error()}
		}
		s.AttachPolicy(hrn, pf.Source)
	}
	return nil
}

// LoadYAMLFile reads path and loads it via LoadYAML.
func (s *Store) LoadYAMLFile(path string) error {
	f, err := os.Open(path) // #nosec G304 -- caller-provided fixture path, not untrusted input
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	return s.LoadYAML(data)
}

// NewStoreFromYAML constructs a Store and loads it from a fixture document.
func NewStoreFromYAML(data []byte) (*Store, error) {
	s := NewStore()
	if err := s.LoadYAML(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (ef entityFixture) toEntity() (Entity, error) {
	hrn, err := kernel.ParseHRN(ef.HRN)
	if err != nil {
		return Entity{}, &FixtureError{Reason: err.Error()}
	}

	attrs := make(map[kernel.AttributeName]kernel.AttributeValue, len(ef.Attributes))
	for k, v := range ef.Attributes {
		av, err := attributeValueOf(v)
		if err != nil {
			return Entity{}, &FixtureError{Reason: fmt.Sprintf("attribute %q of %s: %s", k, ef.HRN, err)}
		}
		attrs[kernel.AttributeName(k)] = av
	}

	parents := make([]kernel.HRN, 0, len(ef.Parents))
	for _, p := range ef.Parents {
		parentHRN, err := kernel.ParseHRN(p)
		if err != nil {
			return Entity{}, &FixtureError{Reason: err.Error()}
		}
		parents = append(parents, parentHRN)
	}

	return Entity{
		HRN:        hrn,
		Type:       kernel.ResourceTypeName(ef.Type),
		Svc:        kernel.ServiceName(ef.Service),
		Attrs:      attrs,
		ParentHRNs: parents,
	}, nil
}

// attributeValueOf converts a YAML-decoded scalar or list into a
// kernel.AttributeValue. Maps decode as records, slices as sets, and
// anything else as the matching scalar kind.
func attributeValueOf(v interface{}) (kernel.AttributeValue, error) {
	switch t := v.(type) {
	case bool:
		return kernel.BoolValue(t), nil
	case string:
		return kernel.StringValue(t), nil
	case int:
		return kernel.LongValue(int64(t)), nil
	case int64:
		return kernel.LongValue(t), nil
	case float64:
		return kernel.LongValue(int64(t)), nil
	case []interface{}:
		vals := make([]kernel.AttributeValue, 0, len(t))
		for _, e := range t {
			ev, err := attributeValueOf(e)
			if err != nil {
				return kernel.AttributeValue{}, err
			}
			vals = append(vals, ev)
		}
		return kernel.SetValue(vals), nil
	case map[string]interface{}:
		rec := make(map[string]kernel.AttributeValue, len(t))
		for k, e := range t {
			ev, err := attributeValueOf(e)
			if err != nil {
				return kernel.AttributeValue{}, err
			}
			rec[k] = ev
		}
		return kernel.RecordValue(rec), nil
	default:
		return kernel.AttributeValue{}, fmt.Errorf("unsupported attribute value type %T", v)
	}
}

var _ identity.UserFinder = (*Store)(nil)
var _ identity.GroupFinder = (*Store)(nil)
var _ identity.PolicyFinder = (*Store)(nil)

// FindUser implements identity.UserFinder.
func (s *Store) FindUser(ctx context.Context, hrn kernel.HRN) (kernel.HodeiEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[hrn]
	if !ok {
		return nil, &kernel.EvaluationError{Kind: kernel.ErrPrincipalNotFound, Reason: hrn.String()}
	}
	return e, nil
}

// FindGroup implements identity.GroupFinder.
func (s *Store) FindGroup(ctx context.Context, hrn kernel.HRN) (kernel.HodeiEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[hrn]
	if !ok {
		return nil, &kernel.EvaluationError{Kind: kernel.ErrRepositoryFailure, Reason: "group not found: " + hrn.String()}
	}
	return g, nil
}

// FindPolicies implements identity.PolicyFinder. An HRN with no
// attachments yields an empty, non-nil slice rather than an error.
func (s *Store) FindPolicies(ctx context.Context, hrn kernel.HRN) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.policies[hrn]...), nil
}
