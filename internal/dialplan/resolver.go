package dialplan

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/routepbx/routepbx/internal/billing"
	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/database/models"
	"github.com/routepbx/routepbx/internal/fsxml"
	"github.com/routepbx/routepbx/internal/tenant"
)

// Routing config defaults, applied when a tenant has no routing_configs row.
const (
	defaultInternalPrefix  = "9"
	defaultVoicemailPrefix = "*9"
	defaultCodecString     = "PCMU,PCMA,G722"
)

// Prompt files referenced by generated programs.
const (
	promptInvalidExtension = "ivr/ivr-no_route_destination.wav"
	promptNotAvailable     = "ivr/ivr-not_available.wav"
	promptNoCredit         = "ivr/ivr-not_enough_credit.wav"
)

// Request is one dialplan resolution query from the switch.
type Request struct {
	Destination string
	Context     string
	Domain      string
	CallerID    string
}

// Engine orchestrates inbound-route lookup, the custom rule engine,
// internal/outbound heuristics, prepaid billing and recording injection
// into one ordered action program.
type Engine struct {
	store   *database.Store
	tenants *tenant.Resolver
	rules   *RuleEngine
}

// NewEngine creates an Engine over the given store.
func NewEngine(store *database.Store, tenants *tenant.Resolver) *Engine {
	return &Engine{
		store:   store,
		tenants: tenants,
		rules:   NewRuleEngine(store.DialplanRules),
	}
}

// Resolve computes the action program for a destination. It never fails on
// routing grounds: unroutable destinations produce an "invalid extension"
// program and a missing tenant table produces a minimal empty document.
func (e *Engine) Resolve(ctx context.Context, req Request) (*fsxml.Document, error) {
	dest := strings.TrimSpace(req.Destination)

	tn, domain, err := e.tenants.Resolve(ctx, tenant.Query{
		Domain:      req.Domain,
		Context:     req.Context,
		Destination: dest,
	})
	if err != nil {
		return nil, err
	}
	if tn == nil {
		// No tenant records exist; still emit a parseable empty program.
		return emptyProgram(outputContext(req.Context, 0)), nil
	}

	outCtx := outputContext(req.Context, tn.ID)

	// Inbound DID routes supersede everything else. The unscoped match is
	// re-queried scoped to the resolved tenant when they disagree; the
	// scoped match, if found, wins.
	route, err := e.store.InboundRoutes.FirstEnabledByDID(ctx, dest)
	if err != nil {
		return nil, err
	}
	if route != nil && route.TenantID != tn.ID {
		scoped, err := e.store.InboundRoutes.FirstEnabledByDIDAndTenant(ctx, dest, tn.ID)
		if err != nil {
			return nil, err
		}
		if scoped != nil {
			route = scoped
		}
	}
	if route != nil {
		return e.resolveInbound(ctx, req, route, tn, domain, outCtx, dest)
	}

	// Tenant-defined dialplan rules.
	matched, err := e.rules.Resolve(ctx, tn.ID, dest, req.Context, domain)
	if err != nil {
		return nil, err
	}
	if matched != nil {
		return e.resolveRule(matched, outCtx, dest, e.codecString(ctx, tn.ID)), nil
	}

	// Heuristic internal/outbound resolution.
	return e.resolveHeuristic(ctx, req, tn, domain, outCtx, dest)
}

// resolveInbound dispatches a matched inbound route by destination type.
func (e *Engine) resolveInbound(ctx context.Context, req Request, route *models.InboundRoute, tn *models.Tenant, domain, outCtx, dest string) (*fsxml.Document, error) {
	// A route owned by a different tenant pulls the call into that
	// tenant's scope.
	if route.TenantID != tn.ID {
		owner, err := e.store.Tenants.GetByID(ctx, route.TenantID)
		if err != nil {
			return nil, err
		}
		if owner != nil {
			tn = owner
			domain = owner.Domain
			outCtx = outputContext(req.Context, owner.ID)
		}
	}

	rc, err := e.routingConfig(ctx, tn.ID)
	if err != nil {
		return nil, err
	}

	p := &Program{Context: outCtx, Destination: dest}

	parsed, err := ParseInboundDestination(route.DestinationType, route.DestinationValue)
	if err != nil {
		slog.Warn("inbound route has unusable destination",
			"route_id", route.ID, "type", route.DestinationType, "error", err)
		return invalidProgram(outCtx, dest), nil
	}

	switch d := parsed.(type) {
	case ToIVR:
		menu, err := e.store.IVRMenus.GetByID(ctx, d.MenuID)
		if err != nil {
			return nil, err
		}
		if menu == nil {
			return notAvailableProgram(outCtx, dest), nil
		}
		options, err := e.store.IVRMenus.ListOptions(ctx, menu.ID)
		if err != nil {
			return nil, err
		}
		if len(options) == 0 {
			return notAvailableProgram(outCtx, dest), nil
		}
		compiled := CompileIVR(menu, options, domain, outCtx)
		p.Name = fmt.Sprintf("ivr_menu_%d", menu.ID)
		p.AddAll(compiled.MenuActions)
		p.Extra = append(p.Extra, compiled.Dispatch)

	case ToExtension:
		p.Name = "inbound_" + dest
		p.AddAll(RecordingActions("inbound-"+dest, rc.CodecString))
		p.Add("bridge", "user/"+d.Extension+"@"+domain)

	case ToSIPURI:
		p.Name = "inbound_" + dest
		p.AddAll(RecordingActions("inbound-"+dest, rc.CodecString))
		p.Add("bridge", d.URI)

	case ToVoicemail:
		p.Name = "inbound_" + dest
		addVoicemail(p, domain, d.Mailbox)
	}

	return p.Document(), nil
}

// resolveRule turns a matched custom rule into the program. Inherited base
// actions and auto-injected recording, when enabled, prefix the rule's own
// action list.
func (e *Engine) resolveRule(matched *MatchedRule, outCtx, dest, codecString string) *fsxml.Document {
	name := matched.Rule.Name
	if name == "" {
		name = fmt.Sprintf("rule_%d", matched.Rule.ID)
	}

	p := &Program{Context: outCtx, Name: name, Destination: dest}
	if matched.Rule.InheritDefault {
		p.Add("set", "hangup_after_bridge=true")
		p.Add("set", "ringback=${us-ring}")
	}
	if matched.Rule.RecordingEnabled && !hasRecordingAction(matched.Actions) {
		p.AddAll(RecordingActions("rule-"+safeLabel(name), codecString))
	}
	p.AddAll(matched.Actions)
	return p.Document()
}

// resolveHeuristic applies the internal-extension, voicemail, SIP-URI,
// outbound-rule and international heuristics, in that order.
func (e *Engine) resolveHeuristic(ctx context.Context, req Request, tn *models.Tenant, domain, outCtx, dest string) (*fsxml.Document, error) {
	rc, err := e.routingConfig(ctx, tn.ID)
	if err != nil {
		return nil, err
	}

	// Exact local extension (2-6 digits).
	if isDigits(dest) && len(dest) >= 2 && len(dest) <= 6 {
		ok, err := e.isLocalExtension(ctx, tn.ID, dest)
		if err != nil {
			return nil, err
		}
		if ok {
			return localBridgeProgram(outCtx, dest, dest, domain, rc.CodecString), nil
		}
	}

	// Internal prefix stripped.
	if rc.InternalPrefix != "" && strings.HasPrefix(dest, rc.InternalPrefix) && dest != rc.InternalPrefix {
		stripped := strings.TrimPrefix(dest, rc.InternalPrefix)
		ok, err := e.isLocalExtension(ctx, tn.ID, stripped)
		if err != nil {
			return nil, err
		}
		if ok {
			return localBridgeProgram(outCtx, dest, stripped, domain, rc.CodecString), nil
		}
	}

	// Voicemail prefix stripped: short-circuits billing and recording.
	if rc.VoicemailPrefix != "" && strings.HasPrefix(dest, rc.VoicemailPrefix) && dest != rc.VoicemailPrefix {
		stripped := strings.TrimPrefix(dest, rc.VoicemailPrefix)
		ok, err := e.isLocalExtension(ctx, tn.ID, stripped)
		if err != nil {
			return nil, err
		}
		if ok {
			p := &Program{Context: outCtx, Name: "voicemail_" + stripped, Destination: dest}
			addVoicemail(p, domain, stripped)
			return p.Document(), nil
		}
	}

	// user@domain destinations bridge straight out.
	if isSIPShaped(dest) {
		p := &Program{Context: outCtx, Name: "sip_uri", Destination: dest}
		p.AddAll(RecordingActions("sip-"+dest, rc.CodecString))
		p.Add("bridge", "sofia/external/"+dest)
		return p.Document(), nil
	}

	// Outbound carrier rules, priority order, first regex match wins.
	target, err := e.matchOutbound(ctx, tn.ID, rc, dest)
	if err != nil {
		return nil, err
	}

	// International heuristics when no rule claimed the number.
	if target == nil {
		target = matchInternational(rc, dest)
	}

	if target == nil {
		return invalidProgram(outCtx, dest), nil
	}
	return e.gatewayBridgeProgram(ctx, req, tn, rc, outCtx, dest, target)
}

// outboundTarget is a gateway bridge derived from an outbound rule or an
// international heuristic.
type outboundTarget struct {
	GatewayName string
	Number      string
	Rule        *models.OutboundRule
	Gateway     *models.Gateway
}

// matchOutbound scans the tenant's enabled outbound rules in priority order
// and returns the first whose matchPrefix regex matches. A malformed
// pattern is treated as a non-match.
func (e *Engine) matchOutbound(ctx context.Context, tenantID int64, rc models.RoutingConfig, dest string) (*outboundTarget, error) {
	rules, err := e.store.OutboundRules.ListEnabledByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for i := range rules {
		rule := &rules[i]
		re, err := regexp.Compile(rule.MatchPrefix)
		if err != nil {
			slog.Debug("outbound rule pattern failed to compile, skipping",
				"rule_id", rule.ID, "pattern", rule.MatchPrefix, "error", err)
			continue
		}
		if !re.MatchString(dest) {
			continue
		}

		strip := rule.StripDigits
		if strip < 0 {
			strip = 0
		}
		if strip > len(dest) {
			strip = len(dest)
		}
		number := rule.Prepend + dest[strip:]

		var gw *models.Gateway
		gatewayName := rc.PSTNGateway
		if rule.GatewayID != nil {
			gw, err = e.store.Gateways.GetByID(ctx, *rule.GatewayID)
			if err != nil {
				return nil, err
			}
			if gw != nil {
				gatewayName = gw.Name
			}
		}
		if gatewayName == "" {
			slog.Warn("outbound rule matched but no gateway available",
				"rule_id", rule.ID, "destination", dest)
			continue
		}

		return &outboundTarget{
			GatewayName: gatewayName,
			Number:      number,
			Rule:        rule,
			Gateway:     gw,
		}, nil
	}
	return nil, nil
}

// matchInternational applies the 00-prefix and E.164 dialing heuristics
// against the tenant's default PSTN gateway.
func matchInternational(rc models.RoutingConfig, dest string) *outboundTarget {
	if rc.PSTNGateway == "" {
		return nil
	}

	if strings.HasPrefix(dest, "00") {
		rest := dest[2:]
		if isDigits(rest) && len(rest) >= 6 && len(rest) <= 15 {
			return &outboundTarget{GatewayName: rc.PSTNGateway, Number: rest}
		}
	}

	if rc.EnableE164 {
		digits := strings.TrimPrefix(dest, "+")
		if isDigits(digits) && len(digits) >= 6 && len(digits) <= 15 {
			return &outboundTarget{GatewayName: rc.PSTNGateway, Number: digits}
		}
	}
	return nil
}

// gatewayBridgeProgram finalizes a PSTN bridge: prepaid allowance check,
// caller-ID overrides, billing exports, recording and the bridge itself.
func (e *Engine) gatewayBridgeProgram(ctx context.Context, req Request, tn *models.Tenant, rc models.RoutingConfig, outCtx, dest string, target *outboundTarget) (*fsxml.Document, error) {
	bc, err := e.store.BillingConfigs.GetByTenant(ctx, tn.ID)
	if err != nil {
		return nil, err
	}

	rate := effectiveRate(bc, target.Rule)

	var limitedSeconds int
	if bc != nil && bc.PrepaidEnabled {
		switch allowance := rate.Allowance(bc.BalanceAmount); allowance.Kind {
		case billing.Insufficient:
			return noCreditProgram(outCtx, dest), nil
		case billing.Limited:
			limitedSeconds = allowance.Seconds
		}
	}

	p := &Program{Context: outCtx, Name: "outbound_" + dest, Destination: dest}

	// Caller-ID override from the rule's gateway, falling back to the
	// call's effective caller ID.
	cidNum := req.CallerID
	if target.Gateway != nil && target.Gateway.CallerIDNumber != "" {
		cidNum = target.Gateway.CallerIDNumber
	}
	if target.Gateway != nil && target.Gateway.CallerIDName != "" {
		p.Add("set", "effective_caller_id_name="+target.Gateway.CallerIDName)
	}
	if cidNum != "" {
		p.Add("set", "effective_caller_id_number="+cidNum)
	}

	// Billing exports consumed by the CDR ingestion path.
	routeID, billingEnabled, billingCID := int64(0), false, ""
	if target.Rule != nil {
		routeID = target.Rule.ID
		billingEnabled = target.Rule.BillingEnabled
		billingCID = target.Rule.BillingCID
	}
	p.Add("export", "billing_route_id="+strconv.FormatInt(routeID, 10))
	p.Add("export", "billing_enabled="+strconv.FormatBool(billingEnabled))
	p.Add("export", "billing_cid="+billingCID)
	p.Add("export", "billing_rate="+formatFloat(rate.PerMinute))
	p.Add("export", "billing_increment="+strconv.Itoa(normalizedIncrementSeconds(rate)))
	p.Add("export", "billing_setup_fee="+formatFloat(rate.SetupFee))

	if limitedSeconds > 0 {
		p.Add("sched_hangup", fmt.Sprintf("+%d ALLOTTED_TIMEOUT", limitedSeconds-1))
	}

	p.AddAll(RecordingActions("out-"+target.Number, rc.CodecString))
	p.Add("bridge", fmt.Sprintf("sofia/gateway/%s/%s", target.GatewayName, target.Number))
	return p.Document(), nil
}

// effectiveRate folds route-level billing overrides over tenant defaults.
func effectiveRate(bc *models.BillingConfig, rule *models.OutboundRule) billing.Rate {
	var rate billing.Rate
	if bc != nil {
		rate = billing.Rate{
			PerMinute:        bc.DefaultRatePerMinute,
			SetupFee:         bc.DefaultSetupFee,
			IncrementSeconds: bc.DefaultIncrementSeconds,
		}
	}
	if rule != nil && rule.BillingEnabled {
		rate = billing.Rate{
			PerMinute:        rule.BillingRatePerMinute,
			SetupFee:         rule.BillingSetupFee,
			IncrementSeconds: rule.BillingIncrementSeconds,
		}
	}
	return rate
}

// routingConfig loads a tenant's routing config, substituting defaults when
// none is stored.
func (e *Engine) routingConfig(ctx context.Context, tenantID int64) (models.RoutingConfig, error) {
	rc, err := e.store.RoutingConfigs.GetByTenant(ctx, tenantID)
	if err != nil {
		return models.RoutingConfig{}, err
	}
	if rc == nil {
		return models.RoutingConfig{
			TenantID:        tenantID,
			InternalPrefix:  defaultInternalPrefix,
			VoicemailPrefix: defaultVoicemailPrefix,
			CodecString:     defaultCodecString,
		}, nil
	}
	if rc.CodecString == "" {
		rc.CodecString = defaultCodecString
	}
	return *rc, nil
}

func (e *Engine) codecString(ctx context.Context, tenantID int64) string {
	rc, err := e.routingConfig(ctx, tenantID)
	if err != nil {
		return defaultCodecString
	}
	return rc.CodecString
}

func (e *Engine) isLocalExtension(ctx context.Context, tenantID int64, number string) (bool, error) {
	if number == "" {
		return false, nil
	}
	ext, err := e.store.Extensions.GetByTenantAndNumber(ctx, tenantID, number)
	if err != nil {
		return false, err
	}
	return ext != nil, nil
}

// localBridgeProgram bridges to a local extension with recording.
func localBridgeProgram(outCtx, dest, extension, domain, codecString string) *fsxml.Document {
	p := &Program{Context: outCtx, Name: "local_" + extension, Destination: dest}
	p.AddAll(RecordingActions("local-"+extension, codecString))
	p.Add("bridge", "user/"+extension+"@"+domain)
	return p.Document()
}

// addVoicemail appends the standard voicemail drop sequence.
func addVoicemail(p *Program, domain, mailbox string) {
	p.Add("answer", "")
	p.Add("sleep", "250")
	p.Add("voicemail", fmt.Sprintf("default %s %s", domain, mailbox))
}

// invalidProgram is the terminal program for unroutable destinations.
func invalidProgram(outCtx, dest string) *fsxml.Document {
	p := &Program{Context: outCtx, Name: "invalid_destination", Destination: dest}
	p.Add("answer", "")
	p.Add("playback", promptInvalidExtension)
	p.Add("hangup", "NO_ROUTE_DESTINATION")
	return p.Document()
}

// notAvailableProgram is emitted for inbound routes pointing at empty or
// missing IVR menus.
func notAvailableProgram(outCtx, dest string) *fsxml.Document {
	p := &Program{Context: outCtx, Name: "not_available", Destination: dest}
	p.Add("answer", "")
	p.Add("playback", promptNotAvailable)
	p.Add("hangup", "NORMAL_TEMPORARY_FAILURE")
	return p.Document()
}

// noCreditProgram short-circuits a prepaid call with an insufficient balance.
func noCreditProgram(outCtx, dest string) *fsxml.Document {
	p := &Program{Context: outCtx, Name: "no_credit", Destination: dest}
	p.Add("answer", "")
	p.Add("playback", promptNoCredit)
	p.Add("hangup", "NO_CREDIT")
	return p.Document()
}

// emptyProgram is the minimal valid document emitted when no tenant exists.
func emptyProgram(outCtx string) *fsxml.Document {
	doc := fsxml.NewDocument()
	doc.Sections = append(doc.Sections, fsxml.Section{
		Name:    "dialplan",
		Context: &fsxml.Context{Name: outCtx},
	})
	return doc
}

// outputContext picks the context name for the generated document: the
// caller's context when supplied, else the tenant's canonical context.
func outputContext(callContext string, tenantID int64) string {
	if callContext != "" {
		return callContext
	}
	if tenantID > 0 {
		return fmt.Sprintf("context_%d", tenantID)
	}
	return "default"
}

func normalizedIncrementSeconds(r billing.Rate) int {
	if r.IncrementSeconds <= 0 {
		return 60
	}
	return r.IncrementSeconds
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isSIPShaped reports whether a destination looks like user@domain.
func isSIPShaped(dest string) bool {
	at := strings.Index(dest, "@")
	return at > 0 && at < len(dest)-1 && !strings.ContainsAny(dest, " \t")
}
