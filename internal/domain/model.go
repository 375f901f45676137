package domain

import "time"

// Core domain models. Wire shapes live with the HTTP adapter; keep these
// decoupled where helpful.

// FieldStatus tags an extracted field with how confidently it was located.
type FieldStatus string

const (
	FieldPresent   FieldStatus = "present"
	FieldAbsent    FieldStatus = "absent"
	FieldAmbiguous FieldStatus = "ambiguous"
)

// ExtractedField is one schema field projected out of the extraction
// service's response. Value is blank unless Status is present. Candidates
// carries the conflicting values when Status is ambiguous.
type ExtractedField struct {
	Name       string
	Value      string
	Status     FieldStatus
	Candidates []string
	Page       int
	Evidence   string
}

// Comparison selects how a requirement is checked against its field.
type Comparison string

const (
	MinCoverage  Comparison = "min_coverage"
	ExactMatch   Comparison = "exact_match"
	PresenceOnly Comparison = "presence_only"
)

// Requirement is one rule in a policy. Threshold is unused for
// presence_only; for min_coverage it must parse as a money amount.
type Requirement struct {
	ID           string
	Label        string
	CoverageType string
	FieldName    string
	Comparison   Comparison
	Threshold    string
	Mandatory    bool
}

// RequirementPolicy is the ordered rule set a certificate is graded
// against. Read-only during an evaluation.
type RequirementPolicy struct {
	ID           string
	OrgID        string
	Requirements []Requirement
}

// CheckStatus is the verdict for one requirement.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckUnknown CheckStatus = "unknown"
)

// CheckResult is the outcome of one requirement; results are 1:1 and
// order-preserving with the policy that produced them.
type CheckResult struct {
	ID             string      `json:"id"`
	Label          string      `json:"label"`
	Status         CheckStatus `json:"status"`
	RequirementID  string      `json:"requirement_id"`
	EvidenceFields []string    `json:"evidence_fields,omitempty"`
}

// Scorecard is the grading result. Score is the percentage of pass over
// pass+fail; when no check resolved either way the card reports
// InsufficientData instead of a number.
type Scorecard struct {
	Checks           []CheckResult
	Score            int
	InsufficientData bool
}

// Snapshot is one immutable, dated compliance evaluation for a vendor.
// History grows by appending; a re-evaluation records a new Snapshot.
type Snapshot struct {
	ID               string
	OrgID            string
	VendorID         string
	SnapshotDate     time.Time
	Checks           []CheckResult
	Score            int
	InsufficientData bool
	CreatedBy        string
	CreatedAt        time.Time
}

// PageImage is one rasterized page of a submitted document, in document
// order. Format names the image encoding ("png" or "jpeg"); Scale is the
// upscaling factor applied relative to the source.
type PageImage struct {
	Index  int
	Data   []byte
	Format string
	Scale  float64
}

// Submission is the transient input to one pipeline run. Raw bytes are
// never persisted.
type Submission struct {
	IdentityKey string
	SubmittedAt time.Time
	Source      []byte
	MIMEType    string
}

// AuditEntry is one best-effort record of a state-changing action.
type AuditEntry struct {
	Action   string
	OrgID    string
	UserID   string
	Metadata map[string]string
	At       time.Time
}

// Canonical COI field names produced by the extractor schema. Policies
// reference these by name; the evaluator treats them as opaque data.
const (
	FieldInsuredName         = "insured_name"
	FieldCertificateHolder   = "certificate_holder"
	FieldGLEachOccurrence    = "general_liability_each_occurrence"
	FieldGLAggregate         = "general_liability_aggregate"
	FieldAutoCSL             = "auto_liability_combined_single_limit"
	FieldWCEachAccident      = "workers_comp_each_accident"
	FieldUmbrellaEachOcc     = "umbrella_each_occurrence"
	FieldAdditionalInsured   = "additional_insured"
	FieldWaiverOfSubrogation = "waiver_of_subrogation"
	FieldPolicyExpiration    = "policy_expiration_date"
)

// FieldCatalog is the full set of field names the extractor must resolve.
func FieldCatalog() []string {
	return []string{
		FieldInsuredName,
		FieldCertificateHolder,
		FieldGLEachOccurrence,
		FieldGLAggregate,
		FieldAutoCSL,
		FieldWCEachAccident,
		FieldUmbrellaEachOcc,
		FieldAdditionalInsured,
		FieldWaiverOfSubrogation,
		FieldPolicyExpiration,
	}
}

// DefaultPublicPolicy is the policy the anonymous grader applies when no
// org-specific policy is in play.
func DefaultPublicPolicy() RequirementPolicy {
	return RequirementPolicy{
		ID: "public-default",
		Requirements: []Requirement{
			{ID: "gl-occurrence", Label: "General liability each occurrence", CoverageType: "general_liability", FieldName: FieldGLEachOccurrence, Comparison: MinCoverage, Threshold: "1000000", Mandatory: true},
			{ID: "gl-aggregate", Label: "General liability aggregate", CoverageType: "general_liability", FieldName: FieldGLAggregate, Comparison: MinCoverage, Threshold: "2000000", Mandatory: true},
			{ID: "auto-csl", Label: "Auto liability combined single limit", CoverageType: "auto_liability", FieldName: FieldAutoCSL, Comparison: MinCoverage, Threshold: "1000000", Mandatory: true},
			{ID: "wc-each-accident", Label: "Workers' compensation each accident", CoverageType: "workers_comp", FieldName: FieldWCEachAccident, Comparison: MinCoverage, Threshold: "1000000", Mandatory: true},
			{ID: "additional-insured", Label: "Additional insured endorsement", CoverageType: "endorsement", FieldName: FieldAdditionalInsured, Comparison: PresenceOnly, Mandatory: true},
			{ID: "expiration-date", Label: "Policy expiration date shown", CoverageType: "expiration", FieldName: FieldPolicyExpiration, Comparison: PresenceOnly, Mandatory: false},
		},
	}
}
