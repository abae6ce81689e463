package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"testing"

	"vaultix/crypto"
	"vaultix/native/escrow"
)

func TestFromErrorMapsEscrowCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{fmt.Errorf("%w: 4", escrow.ErrEscrowNotFound), http.StatusNotFound, -33001},
		{escrow.ErrEscrowAlreadyExists, http.StatusConflict, -33002},
		{escrow.ErrUnauthorizedAccess, http.StatusForbidden, -33005},
		{escrow.ErrTreasuryNotInitialized, http.StatusPreconditionFailed, -33011},
		{escrow.ErrSelfDealing, http.StatusBadRequest, -33015},
		{fmt.Errorf("%w: missing", escrow.ErrAuthorization), http.StatusUnauthorized, codeUnauthorized},
		{context.Canceled, http.StatusServiceUnavailable, codeServerError},
		{errors.New("disk full"), http.StatusInternalServerError, codeServerError},
	}
	for _, tc := range cases {
		got := fromError(tc.err)
		if got.HTTPStatus != tc.status || got.Code != tc.code {
			t.Fatalf("%v: got status %d code %d, want %d/%d", tc.err, got.HTTPStatus, got.Code, tc.status, tc.code)
		}
	}
	if fromError(nil) != nil {
		t.Fatalf("nil error must map to nil")
	}
}

func TestFormatEscrowResult(t *testing.T) {
	depositor := crypto.DeriveIdentity("fmt/depositor")
	esc := &escrow.Escrow{
		ID:            3,
		Depositor:     depositor,
		TotalAmount:   big.NewInt(300),
		TotalReleased: big.NewInt(100),
		Milestones: []*escrow.Milestone{
			{Amount: big.NewInt(100), Status: escrow.MilestoneReleased, Description: "a"},
			{Amount: big.NewInt(200)},
		},
	}
	result := formatEscrowResult(esc)
	if result.Depositor != crypto.FormatIdentity(depositor) {
		t.Fatalf("unexpected depositor %s", result.Depositor)
	}
	if result.TotalReleased != "100" || len(result.Milestones) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Milestones[0].Status != "released" || result.Milestones[1].Index != 1 {
		t.Fatalf("unexpected milestones %+v", result.Milestones)
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	if _, err := parseAmount("amount", "12abc"); err == nil || err.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %v", err)
	}
	amount, err := parseAmount("amount", " -5 ")
	if err != nil || amount.Int64() != -5 {
		t.Fatalf("unexpected parse result %v %v", amount, err)
	}
	if _, err := parseIdentity("token", ""); err == nil {
		t.Fatalf("expected missing identity error")
	}
}

func TestParseFeeBpsClampsLargeValues(t *testing.T) {
	cases := map[string]int64{
		"50":                    50,
		"1e3":                   1000,
		"1e20":                  math.MaxInt64,
		"-99999999999999999999": math.MinInt64,
		"1e400":                 math.MaxInt64,
	}
	for input, want := range cases {
		got, err := parseFeeBps(json.Number(input))
		if err != nil || got != want {
			t.Fatalf("%s: got %d (%v), want %d", input, got, err, want)
		}
		if got > escrow.BpsDenominator && escrow.ValidateFeeBps(got) == nil {
			t.Fatalf("%s: clamped value must stay invalid", input)
		}
	}
	if _, err := parseFeeBps(json.Number("1.5")); err == nil || err.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for fractional fee, got %v", err)
	}
}
