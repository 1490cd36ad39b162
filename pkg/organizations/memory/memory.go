//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package memory provides in-memory, map-backed implementations of
// pkg/organizations's AccountFinder, OuHierarchyProvider, and ScpFinder
// ports, for tests and small deployments.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/organizations"
)

// Store is a single in-memory repository backing all three of
// pkg/organizations's ports. It models the organization as a tree: every
// OU or account node has at most one parent, recorded via SetParent. A
// node with no recorded parent is the organization root.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]kernel.HRN
	parents  map[kernel.HRN]kernel.HRN
	scps     map[kernel.HRN][]string
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]kernel.HRN),
		parents:  make(map[kernel.HRN]kernel.HRN),
		scps:     make(map[kernel.HRN][]string),
	}
}

// RegisterAccount records the canonical HRN for an account id.
func (s *Store) RegisterAccount(accountID string, accountHRN kernel.HRN) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID] = accountHRN
}

// SetParent records that child (an OU or account HRN) is directly
// contained by parent in the organizational hierarchy.
func (s *Store) SetParent(child, parent kernel.HRN) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[child] = parent
}

// AttachScp appends a Policy DSL source text to the given node's direct
// attachments.
func (s *Store) AttachScp(node kernel.HRN, policySource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scps[node] = append(s.scps[node], policySource)
}

// FixtureError reports a malformed YAML fixture document passed to LoadYAML.
type FixtureError struct {
	Reason string
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("organizations fixture error: %s", e.Reason)
}

// fixtures is the YAML document shape consumed by LoadYAML: an account
// tree expressed as a flat list of nodes (each naming its parent, if any)
// plus the SCPs attached to each node, mirroring the teacher's flat,
// mrn-keyed YAML fixture convention.
type fixtures struct {
	Accounts []accountFixture `yaml:"accounts"`
	Nodes    []nodeFixture    `yaml:"nodes"`
	Scps     []scpFixture     `yaml:"scps"`
}

type accountFixture struct {
	ID  string `yaml:"id"`
	HRN string `yaml:"hrn"`
}

type nodeFixture struct {
	HRN    string `yaml:"hrn"`
	Parent string `yaml:"parent"`
}

type scpFixture struct {
	Node   string `yaml:"node"`
	Source string `yaml:"source"`
}

// LoadYAML parses a fixture document of the form:
//
//	accounts:
//	  - id: "123456789012"
//	    hrn: "hrn:aws:organizations::123456789012:account/123456789012"
//	nodes:
//	  - hrn: "hrn:aws:organizations::123456789012:account/123456789012"
//	    parent: "hrn:aws:organizations::123456789012:ou/ou-prod"
//	  - hrn: "hrn:aws:organizations::123456789012:ou/ou-prod"
//	scps:
//	  - node: "hrn:aws:organizations::123456789012:ou/ou-prod"
//	    source: |
//	      forbid(principal, action, resource) unless { ... };
//
// and populates s with the resulting accounts, parent links, and SCP
// attachments. A node listed with no "parent" key is the organization root.
func (s *Store) LoadYAML(data []byte) error {
	var doc fixtures
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &FixtureError{Reason: err.Error()}
	}

	for _, af := range doc.Accounts {
		hrn, err := kernel.ParseHRN(af.HRN)
		if err != nil {
			return &FixtureError{Reason: err.Error()}
		}
		s.RegisterAccount(af.ID, hrn)
	}

	for _, nf := range doc.Nodes {
		if nf.Parent == "" {
			continue
		}
		child, err := kernel.ParseHRN(nf.HRN)
		if err != nil {
			return &FixtureError{Reason: err.Error()}
		}
		parent, err := kernel.ParseHRN(nf.Parent)
		if err != nil {
			return &FixtureError{Reason: err.Error()}
		}
		s.SetParent(child, parent)
	}

	for _, sf := range doc.Scps {
		node, err := kernel.ParseHRN(sf.Node)
		if err != nil {
			return &FixtureError{Reason: err.Error()}
		}
		s.AttachScp(node, sf.Source)
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

var _ organizations.AccountFinder = (*Store)(nil)
var _ organizations.OuHierarchyProvider = (*Store)(nil)
var _ organizations.ScpFinder = (*Store)(nil)

// FindAccount implements organizations.AccountFinder.
func (s *Store) FindAccount(ctx context.Context, accountID string) (kernel.HRN, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hrn, ok := s.accounts[accountID]
	if !ok {
		return kernel.HRN{}, &kernel.EvaluationError{Kind: kernel.ErrAccountNotFound, Reason: fmt.Sprintf("unknown account id %q", accountID)}
	}
	return hrn, nil
}

// PathFromRoot implements organizations.OuHierarchyProvider as an
// iterative walk up the parent-pointer map, root-to-leaf ordered.
// Because the organization is meant to be a tree, a node revisited mid-walk
// means a parent pointer was misconfigured into a cycle; this is
// defensive, not an expected runtime condition.
func (s *Store) PathFromRoot(ctx context.Context, accountHRN kernel.HRN) ([]kernel.HRN, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var path []kernel.HRN
	seen := make(map[kernel.HRN]bool)
	cur := accountHRN
	for {
		if seen[cur] {
			return nil, &kernel.EvaluationError{Kind: kernel.ErrCycleInOuHierarchy, Reason: fmt.Sprintf("cycle detected walking to root from %s", accountHRN.String())}
		}
		seen[cur] = true
		path = append(path, cur)

		parent, ok := s.parents[cur]
		if !ok {
			break
		}
		cur = parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// ScpsAttachedTo implements organizations.ScpFinder. A node with no
// attachments yields an empty, non-nil slice rather than an error.
func (s *Store) ScpsAttachedTo(ctx context.Context, nodeHRN kernel.HRN) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.scps[nodeHRN]...), nil
}
