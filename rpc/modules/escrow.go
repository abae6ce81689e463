package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"vaultix/crypto"
	"vaultix/host"
	"vaultix/native/escrow"
)

// EscrowModule exposes the escrow operations of the host runtime over RPC.
type EscrowModule struct {
	runtime *host.Runtime
}

// NewEscrowModule constructs an escrow RPC module.
func NewEscrowModule(rt *host.Runtime) *EscrowModule {
	return &EscrowModule{runtime: rt}
}

var errModuleOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "escrow module not initialised"}

type initializeParams struct {
	Treasury string       `json:"treasury"`
	FeeBps   *json.Number `json:"feeBps,omitempty"`
}

type updateFeeParams struct {
	FeeBps *json.Number `json:"feeBps"`
}

type milestoneParams struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type createParams struct {
	ID         *uint64           `json:"id"`
	Depositor  string            `json:"depositor"`
	Recipient  string            `json:"recipient"`
	Token      string            `json:"token"`
	Milestones []milestoneParams `json:"milestones"`
}

type escrowIDParams struct {
	ID *uint64 `json:"id"`
}

type releaseParams struct {
	ID    *uint64 `json:"id"`
	Index *uint32 `json:"index"`
	Token string  `json:"token"`
}

type confirmParams struct {
	ID    *uint64 `json:"id"`
	Index *uint32 `json:"index"`
	Buyer string  `json:"buyer"`
}

type listEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	After  uint64 `json:"after,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

// ConfigResult is the platform fee configuration.
type ConfigResult struct {
	Treasury string `json:"treasury"`
	FeeBps   int64  `json:"feeBps"`
}

// MilestoneResult is one milestone of an escrow.
type MilestoneResult struct {
	Index       uint32 `json:"index"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// EscrowResult is the persisted escrow record.
type EscrowResult struct {
	ID            uint64            `json:"id"`
	Depositor     string            `json:"depositor"`
	Recipient     string            `json:"recipient"`
	Token         string            `json:"token"`
	TotalAmount   string            `json:"totalAmount"`
	TotalReleased string            `json:"totalReleased"`
	Status        string            `json:"status"`
	Milestones    []MilestoneResult `json:"milestones"`
}

// StateResult carries only the lifecycle status of an escrow.
type StateResult struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

// ReleaseResult describes a fee-charging release.
type ReleaseResult struct {
	EscrowID       uint64 `json:"escrowId"`
	MilestoneIndex uint32 `json:"milestoneIndex"`
	Amount         string `json:"amount"`
	Fee            string `json:"fee"`
	Payout         string `json:"payout"`
	Treasury       string `json:"treasury"`
}

// EscrowEventResult represents a committed event.
type EscrowEventResult struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (m *EscrowModule) ready() *ModuleError {
	if m == nil || m.runtime == nil {
		return errModuleOffline
	}
	return nil
}

// Initialize sets the treasury and fee. The treasury must be among the proofs.
func (m *EscrowModule) Initialize(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*ConfigResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params initializeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	treasury, modErr := parseIdentity("treasury", params.Treasury)
	if modErr != nil {
		return nil, modErr
	}
	var feeBps *int64
	if params.FeeBps != nil {
		fee, modErr := parseFeeBps(*params.FeeBps)
		if modErr != nil {
			return nil, modErr
		}
		feeBps = &fee
	}
	if err := m.runtime.Initialize(ctx, auth, treasury, feeBps); err != nil {
		return nil, fromError(err)
	}
	return m.GetConfig(ctx)
}

// UpdateFee changes the fee rate. The stored treasury must be among the proofs.
func (m *EscrowModule) UpdateFee(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*ConfigResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params updateFeeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.FeeBps == nil {
		return nil, invalidParams("feeBps is required", nil)
	}
	fee, modErr := parseFeeBps(*params.FeeBps)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.runtime.UpdateFee(ctx, auth, fee); err != nil {
		return nil, fromError(err)
	}
	return m.GetConfig(ctx)
}

func (m *EscrowModule) GetConfig(ctx context.Context) (*ConfigResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	cfg, err := m.runtime.GetConfig(ctx)
	if err != nil {
		return nil, fromError(err)
	}
	return &ConfigResult{Treasury: crypto.FormatIdentity(cfg.Treasury), FeeBps: cfg.FeeBps}, nil
}

// Create registers an escrow funded by the depositor.
func (m *EscrowModule) Create(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*EscrowResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params createParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	id, modErr := requireUint64("id", params.ID)
	if modErr != nil {
		return nil, modErr
	}
	depositor, modErr := parseIdentity("depositor", params.Depositor)
	if modErr != nil {
		return nil, modErr
	}
	recipient, modErr := parseIdentity("recipient", params.Recipient)
	if modErr != nil {
		return nil, modErr
	}
	token, modErr := parseIdentity("token", params.Token)
	if modErr != nil {
		return nil, modErr
	}
	milestones := make([]*escrow.Milestone, len(params.Milestones))
	for i, mp := range params.Milestones {
		amount, modErr := parseAmount("milestones.amount", mp.Amount)
		if modErr != nil {
			return nil, modErr
		}
		milestones[i] = &escrow.Milestone{Amount: amount, Description: strings.TrimSpace(mp.Description)}
	}
	created, err := m.runtime.CreateEscrow(ctx, auth, id, depositor, recipient, milestones, token)
	if err != nil {
		return nil, fromError(err)
	}
	return formatEscrowResult(created), nil
}

func (m *EscrowModule) Get(ctx context.Context, raw json.RawMessage) (*EscrowResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	id, modErr := decodeEscrowID(raw)
	if modErr != nil {
		return nil, modErr
	}
	esc, err := m.runtime.GetEscrow(ctx, id)
	if err != nil {
		return nil, fromError(err)
	}
	return formatEscrowResult(esc), nil
}

func (m *EscrowModule) GetState(ctx context.Context, raw json.RawMessage) (*StateResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	id, modErr := decodeEscrowID(raw)
	if modErr != nil {
		return nil, modErr
	}
	status, err := m.runtime.GetState(ctx, id)
	if err != nil {
		return nil, fromError(err)
	}
	return &StateResult{ID: id, Status: status.String()}, nil
}

// ReleaseMilestone pays a milestone minus the platform fee.
func (m *EscrowModule) ReleaseMilestone(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*ReleaseResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params releaseParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	id, modErr := requireUint64("id", params.ID)
	if modErr != nil {
		return nil, modErr
	}
	index, modErr := requireUint32("index", params.Index)
	if modErr != nil {
		return nil, modErr
	}
	token, modErr := parseIdentity("token", params.Token)
	if modErr != nil {
		return nil, modErr
	}
	rel, err := m.runtime.ReleaseMilestone(ctx, auth, id, index, token)
	if err != nil {
		return nil, fromError(err)
	}
	return &ReleaseResult{
		EscrowID:       rel.EscrowID,
		MilestoneIndex: rel.MilestoneIndex,
		Amount:         formatAmount(rel.Amount),
		Fee:            formatAmount(rel.Fee),
		Payout:         formatAmount(rel.Payout),
		Treasury:       crypto.FormatIdentity(rel.Treasury),
	}, nil
}

// ConfirmDelivery releases a milestone in full on the buyer's confirmation and
// returns the updated escrow.
func (m *EscrowModule) ConfirmDelivery(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*EscrowResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params confirmParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	id, modErr := requireUint64("id", params.ID)
	if modErr != nil {
		return nil, modErr
	}
	index, modErr := requireUint32("index", params.Index)
	if modErr != nil {
		return nil, modErr
	}
	buyer, modErr := parseIdentity("buyer", params.Buyer)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.runtime.ConfirmDelivery(ctx, auth, id, index, buyer); err != nil {
		return nil, fromError(err)
	}
	return m.fetch(ctx, id)
}

func (m *EscrowModule) Cancel(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*EscrowResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	id, modErr := decodeEscrowID(raw)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.runtime.CancelEscrow(ctx, auth, id); err != nil {
		return nil, fromError(err)
	}
	return m.fetch(ctx, id)
}

func (m *EscrowModule) Complete(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (*EscrowResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	id, modErr := decodeEscrowID(raw)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.runtime.CompleteEscrow(ctx, auth, id); err != nil {
		return nil, fromError(err)
	}
	return m.fetch(ctx, id)
}

// ListEvents returns committed events. The optional prefix narrows results to a
// namespace such as "escrow." and after resumes from a previous sequence.
func (m *EscrowModule) ListEvents(ctx context.Context, raw json.RawMessage) ([]EscrowEventResult, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	var params listEventsParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, invalidParams("invalid parameter object", err.Error())
		}
	}
	prefix := "escrow."
	if trimmed := strings.TrimSpace(params.Prefix); trimmed != "" {
		prefix = trimmed
	}
	limit := 0
	if params.Limit != nil {
		if *params.Limit <= 0 {
			return []EscrowEventResult{}, nil
		}
		limit = *params.Limit
	}
	records, err := m.runtime.Events(ctx, prefix, params.After, limit)
	if err != nil {
		return nil, fromError(err)
	}
	results := make([]EscrowEventResult, 0, len(records))
	for _, rec := range records {
		evt := rec.Event()
		results = append(results, EscrowEventResult{Sequence: rec.Sequence, Type: evt.Type, Attributes: evt.Attributes})
	}
	return results, nil
}

func (m *EscrowModule) fetch(ctx context.Context, id uint64) (*EscrowResult, *ModuleError) {
	esc, err := m.runtime.GetEscrow(ctx, id)
	if err != nil {
		return nil, fromError(err)
	}
	return formatEscrowResult(esc), nil
}

func decodeEscrowID(raw json.RawMessage) (uint64, *ModuleError) {
	var params escrowIDParams
	if err := decodeParams(raw, &params); err != nil {
		return 0, err
	}
	return requireUint64("id", params.ID)
}

func formatEscrowResult(esc *escrow.Escrow) *EscrowResult {
	if esc == nil {
		return nil
	}
	result := &EscrowResult{
		ID:            esc.ID,
		Depositor:     crypto.FormatIdentity(esc.Depositor),
		Recipient:     crypto.FormatIdentity(esc.Recipient),
		Token:         crypto.FormatIdentity(esc.Token),
		TotalAmount:   formatAmount(esc.TotalAmount),
		TotalReleased: formatAmount(esc.TotalReleased),
		Status:        esc.Status.String(),
		Milestones:    make([]MilestoneResult, 0, len(esc.Milestones)),
	}
	for i, ms := range esc.Milestones {
		if ms == nil {
			continue
		}
		result.Milestones = append(result.Milestones, MilestoneResult{
			Index:       uint32(i),
			Amount:      formatAmount(ms.Amount),
			Status:      ms.Status.String(),
			Description: ms.Description,
		})
	}
	return result
}
