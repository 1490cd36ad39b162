package kernel

import (
	"fmt"
	"strings"
)

// HRN is a Hodei Resource Name, the kernel's universal entity identifier.
//
// Textual form: hrn:<partition>:<service>:<region>:<account>:<resourceType>/<resourceId>
//
// Partition and region may be empty for entities that do not belong to a
// partitioned or regional namespace (e.g. an IAM user has no region).
type HRN struct {
	Partition    string
	Service      string
	Region       string
	Account      string
	ResourceType string
	ResourceID   string
}

const hrnPrefix = "hrn"

// ParseHRN parses the canonical textual form of an HRN.
func ParseHRN(s string) (HRN, error) {
	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 {
		return HRN{}, &InvalidHRNError{Input: s, Reason: "expected 6 colon-separated segments"}
	}
	if parts[0] != hrnPrefix {
		return HRN{}, &InvalidHRNError{Input: s, Reason: fmt.Sprintf("must start with %q", hrnPrefix)}
	}
	resourcePart := parts[5]
	slash := strings.Index(resourcePart, "/")
	if slash < 0 {
		return HRN{}, &InvalidHRNError{Input: s, Reason: "resource segment must contain a '/' separating type from id"}
	}
	resourceType := resourcePart[:slash]
	resourceID := resourcePart[slash+1:]
	if parts[2] == "" {
		return HRN{}, &InvalidHRNError{Input: s, Reason: "service segment must not be empty"}
	}
	if resourceType == "" || resourceID == "" {
		return HRN{}, &InvalidHRNError{Input: s, Reason: "resource type and id must not be empty"}
	}
	return HRN{
		Partition:    parts[1],
		Service:      parts[2],
		Region:       parts[3],
		Account:      parts[4],
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}, nil
}

// String renders the HRN back to its canonical textual form.
func (h HRN) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s/%s",
		hrnPrefix, h.Partition, h.Service, h.Region, h.Account, h.ResourceType, h.ResourceID)
}

// EntityUID renders the Policy DSL entity-reference form of this HRN,
// <Service>::<ResourceType>::"<id>", used by the translator when lowering
// kernel entities into the DSL's evaluation input.
func (h HRN) EntityUID() string {
	return fmt.Sprintf("%s::%s::%q", h.Service, h.ResourceType, h.ResourceID)
}

// IsAccountScoped reports whether this HRN names an account-level resource
// (used by the organizations context to resolve an entity's owning account).
func (h HRN) IsAccountScoped() bool {
	return h.Account != ""
}
