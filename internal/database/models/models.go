package models

import "time"

// Tenant identifies a billing/routing scope. Domain is unique across tenants.
type Tenant struct {
	ID        int64
	Name      string
	Domain    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoutingConfig holds per-tenant routing knobs (1:1 with Tenant).
// Zero values are replaced by defaults at load time.
type RoutingConfig struct {
	ID              int64
	TenantID        int64
	InternalPrefix  string
	VoicemailPrefix string
	PSTNGateway     string
	EnableE164      bool
	CodecString     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Inbound route destination types.
const (
	DestExtension = "extension"
	DestSIPURI    = "sip_uri"
	DestIVR       = "ivr"
	DestVoicemail = "voicemail"
)

// InboundRoute maps a DID number to a destination within a tenant.
type InboundRoute struct {
	ID               int64
	TenantID         int64
	DIDNumber        string
	DestinationType  string // one of the Dest* constants
	DestinationValue string
	Priority         int
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Dialplan rule kinds and match types.
const (
	RuleKindInternal = "internal"
	RuleKindExternal = "external"

	MatchRegex  = "regex"
	MatchPrefix = "prefix"
	MatchExact  = "exact"
)

// DialplanRule is a tenant-defined routing rule with ordered actions.
type DialplanRule struct {
	ID               int64
	TenantID         int64
	Name             string
	Kind             string // internal | external
	MatchType        string // regex | prefix | exact
	Pattern          string
	Context          string
	Extension        string
	Priority         int
	Enabled          bool
	InheritDefault   bool
	RecordingEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DialplanAction is one (application, data) instruction of a rule.
// Data supports {{variable}} templating.
type DialplanAction struct {
	ID          int64
	RuleID      int64
	Application string
	Data        string
	Position    int
	CreatedAt   time.Time
}

// OutboundRule matches outbound destinations against a regex prefix and
// selects a gateway, optionally with per-route billing overrides.
type OutboundRule struct {
	ID                      int64
	TenantID                int64
	GatewayID               *int64
	Name                    string
	MatchPrefix             string // regex
	Priority                int
	StripDigits             int
	Prepend                 string
	BillingEnabled          bool
	BillingRatePerMinute    float64
	BillingSetupFee         float64
	BillingIncrementSeconds int
	BillingCID              string
	Enabled                 bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Gateway is an outbound carrier endpoint. Managed elsewhere; read here for
// dial-string construction and caller-ID overrides.
type Gateway struct {
	ID             int64
	TenantID       int64
	Name           string
	CallerIDName   string
	CallerIDNumber string
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IVR option action types.
const (
	IVRActionExtension = "extension"
	IVRActionSIPURI    = "sip_uri"
	IVRActionVoicemail = "voicemail"
	IVRActionHangup    = "hangup"
)

// IVRMenu is a digit-driven menu with greeting/invalid prompts.
type IVRMenu struct {
	ID             int64
	TenantID       int64
	Name           string
	GreetingURL    string
	InvalidURL     string
	TimeoutSeconds int
	MaxRetries     int
	TimeoutAction  string
	InvalidAction  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IVRMenuOption maps a single digit to an action. Digit is unique within
// its menu.
type IVRMenuOption struct {
	ID          int64
	MenuID      int64
	Digit       string // single char 0-9, # or *
	ActionType  string // one of the IVRAction* constants
	ActionValue string
	Position    int
	CreatedAt   time.Time
}

// BillingConfig holds per-tenant billing defaults and the prepaid balance
// (1:1 with Tenant).
type BillingConfig struct {
	ID                      int64
	TenantID                int64
	Currency                string
	DefaultRatePerMinute    float64
	DefaultIncrementSeconds int
	DefaultSetupFee         float64
	TaxPercent              float64
	PrepaidEnabled          bool
	BalanceAmount           float64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Extension is a SIP endpoint user belonging to a tenant. The password is
// stored in clear because the switch's digest authentication requires the
// server to produce MD5(user:realm:password).
type Extension struct {
	ID               int64
	TenantID         int64
	Extension        string
	Password         string
	Name             string
	VoicemailEnabled bool
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CDR is a rated call detail record written by the CDR ingestion path.
type CDR struct {
	ID             int64
	CallUUID       string
	TenantID       int64
	OutboundRuleID *int64
	Direction      string
	CallerNumber   string
	CalleeNumber   string
	StartedAt      time.Time
	AnsweredAt     *time.Time
	EndedAt        *time.Time
	BillSeconds    int
	RatedSeconds   int
	RatePerMinute  float64
	SetupFee       float64
	TaxPercent     float64
	Cost           float64
	Currency       string
	HangupCause    string
	RecordingFile  string
	CreatedAt      time.Time
}
