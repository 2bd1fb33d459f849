// Package audit flags implausible or abusive resource candidates before they are persisted.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/prompts"
	"github.com/jonathan/relief-intake/internal/schemas"
	"github.com/jonathan/relief-intake/internal/types"
)

// Context describes who submitted the batch and where.
type Context struct {
	UserType         *types.UserType
	IncidentLocation *geo.Point
	UserLocation     *geo.Point
}

// Auditor assigns flagged/abuse_reason to every candidate. The returned slice
// always has one entry per input candidate in input order. A non-nil error is
// only ever a rate limit, reported so the caller can switch providers; the
// candidates returned alongside it are unflagged.
type Auditor interface {
	Audit(ctx context.Context, candidates []types.ResourceCandidate, ac Context) ([]types.ResourceCandidate, error)
}

// NoopAuditor passes every candidate unflagged.
type NoopAuditor struct{}

// Audit implements Auditor.
func (NoopAuditor) Audit(_ context.Context, candidates []types.ResourceCandidate, _ Context) ([]types.ResourceCandidate, error) {
	return passAll(candidates), nil
}

// LLMAuditor implements Auditor with one provider call per batch.
type LLMAuditor struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMAuditor creates an auditor backed by client. A nil logger disables logging.
func NewLLMAuditor(client llm.Client, logger *zap.Logger) *LLMAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMAuditor{client: client, logger: logger}
}

type auditItem struct {
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Subcategory  *string  `json:"subcategory,omitempty"`
	Quantity     *int     `json:"quantity,omitempty"`
	LocationText *string  `json:"location_text,omitempty"`
	DistanceKM   *float64 `json:"distance_km,omitempty"`
}

// Verdict is one decoded audit judgement.
type Verdict struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Flagged bool    `json:"flagged"`
	Reason  *string `json:"reason"`
}

type auditResponse struct {
	Audits []Verdict `json:"audits"`
}

// Audit implements Auditor. Provider failures fail open: every candidate is
// returned unflagged and the failure is logged.
func (a *LLMAuditor) Audit(ctx context.Context, candidates []types.ResourceCandidate, ac Context) ([]types.ResourceCandidate, error) {
	if len(candidates) == 0 {
		return []types.ResourceCandidate{}, nil
	}

	verdicts, err := a.requestVerdicts(ctx, candidates, ac)
	if err != nil {
		a.logger.Warn("audit failed, passing batch unflagged",
			zap.String("provider", string(a.client.Provider())),
			zap.Int("candidates", len(candidates)),
			zap.Error(err))
		if llm.IsRateLimited(err) {
			return passAll(candidates), err
		}
		return passAll(candidates), nil
	}

	return Apply(candidates, verdicts), nil
}

func (a *LLMAuditor) requestVerdicts(ctx context.Context, candidates []types.ResourceCandidate, ac Context) ([]Verdict, error) {
	items := make([]auditItem, len(candidates))
	for i, c := range candidates {
		items[i] = auditItem{
			Index:        c.Index,
			Name:         c.Name,
			Category:     string(c.Category),
			Quantity:     c.Quantity,
			LocationText: c.LocationText,
			DistanceKM:   c.DistanceKM,
		}
		if c.Subcategory != nil {
			s := string(*c.Subcategory)
			items[i].Subcategory = &s
		}
	}
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit items: %w", err)
	}

	system, err := prompts.Get("audit.json", "system")
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("audit.json", "user", map[string]string{
		"UserType":         userTypeText(ac.UserType),
		"IncidentLocation": pointText(ac.IncidentLocation),
		"UserLocation":     pointText(ac.UserLocation),
		"Items":            string(itemsJSON),
	})
	if err != nil {
		return nil, err
	}

	schema := schemas.Audit()
	responseText, err := a.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPayload:  user,
		SchemaName:   schema.Name,
		Schema:       schema.Document,
		Tier:         llm.TierLite,
	})
	if err != nil {
		return nil, llm.Classify(a.client.Provider(), err)
	}

	if err := schema.Validate(responseText); err != nil {
		return nil, &llm.ProviderError{Provider: a.client.Provider(), Message: "audit response violates schema", Cause: err}
	}
	var resp auditResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		return nil, &llm.ProviderError{Provider: a.client.Provider(), Message: "failed to decode audit response", Cause: err}
	}
	return resp.Audits, nil
}

// Apply matches verdicts to candidates and returns the audited copy.
// A verdict binds by index when the index names an unclaimed candidate whose
// name agrees (or the verdict has no name). Otherwise it binds to the first
// unclaimed candidate with the same name. Candidates left without a verdict
// are unflagged.
func Apply(candidates []types.ResourceCandidate, verdicts []Verdict) []types.ResourceCandidate {
	out := passAll(candidates)

	byIndex := make(map[int]int, len(out))
	for pos, c := range out {
		byIndex[c.Index] = pos
	}
	claimed := make([]bool, len(out))

	for _, v := range verdicts {
		pos, ok := byIndex[v.Index]
		if !ok || claimed[pos] || !namesAgree(v.Name, out[pos].Name) {
			pos = -1
			for i := range out {
				if !claimed[i] && namesAgree(v.Name, out[i].Name) && strings.TrimSpace(v.Name) != "" {
					pos = i
					break
				}
			}
		}
		if pos < 0 {
			continue
		}

		claimed[pos] = true
		reason := ""
		if v.Reason != nil {
			reason = *v.Reason
		}
		out[pos].SetVerdict(v.Flagged, reason)
	}

	return out
}

func namesAgree(verdictName, candidateName string) bool {
	v := strings.TrimSpace(verdictName)
	return v == "" || strings.EqualFold(v, strings.TrimSpace(candidateName))
}

// passAll returns a copy with every candidate unflagged.
func passAll(candidates []types.ResourceCandidate) []types.ResourceCandidate {
	out := make([]types.ResourceCandidate, len(candidates))
	for i, c := range candidates {
		c.SetVerdict(false, "")
		out[i] = c
	}
	return out
}

func userTypeText(u *types.UserType) string {
	if u == nil {
		return "unknown"
	}
	return string(*u)
}

func pointText(p *geo.Point) string {
	if !geo.ValidPtr(p) {
		return "unknown"
	}
	return fmt.Sprintf("lat %.5f, lon %.5f", p.Lat(), p.Lon())
}
