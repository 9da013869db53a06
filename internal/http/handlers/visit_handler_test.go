package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/services"
	"github.com/tbourn/go-loyalty-backend/internal/utils"
)

func TestRecordVisit(t *testing.T) {
	var gotCode string
	l := stubLedger{visit: func(_ context.Context, id uint64, code string) (*services.VisitResult, error) {
		gotCode = code
		switch {
		case code != testVenueCode:
			return nil, services.ErrInvalidCode
		case id == 404:
			return nil, services.ErrUserNotFound
		case id == 2:
			return nil, services.ErrDuplicateVisit
		}
		return &services.VisitResult{VisitCount: 10, BonusEarned: true, VisitsToNextBonus: 10}, nil
	}}
	r := newTestRouter(l, stubAdmin{}, stubStaff{})

	w := doJSON(t, r, http.MethodPost, "/visit", map[string]any{"user_id": 1, "code": testVenueCode})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var res services.VisitResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res.VisitCount != 10 || !res.BonusEarned || res.VisitsToNextBonus != 10 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// qr_code alias
	w = doJSON(t, r, http.MethodPost, "/visit", map[string]any{"user_id": 1, "qr_code": testVenueCode})
	if w.Code != http.StatusOK || gotCode != testVenueCode {
		t.Fatalf("alias status=%d code=%q", w.Code, gotCode)
	}
	// code wins over the alias
	w = doJSON(t, r, http.MethodPost, "/visit", map[string]any{"user_id": 1, "code": "WRONG", "qr_code": testVenueCode})
	if w.Code != http.StatusBadRequest || gotCode != "WRONG" {
		t.Fatalf("code+alias status=%d code=%q", w.Code, gotCode)
	}

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"wrong code", map[string]any{"user_id": 1, "code": "WRONG"}, http.StatusBadRequest, ErrCodeInvalidCode},
		{"duplicate day", map[string]any{"user_id": 2, "code": testVenueCode}, http.StatusBadRequest, ErrCodeDuplicateVisit},
		{"unknown user", map[string]any{"user_id": 404, "code": testVenueCode}, http.StatusNotFound, ErrCodeNotFound},
		{"missing user", map[string]any{"code": testVenueCode}, http.StatusBadRequest, ErrCodeBadRequest},
		{"string user id", `{"user_id":"1","code":"x"}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"user id above int64", `{"user_id":18446744073709551615,"code":"` + testVenueCode + `"}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"padded code", map[string]any{"user_id": 1, "code": " " + testVenueCode + " "}, http.StatusBadRequest, ErrCodeInvalidCode},
		{"padded alias", map[string]any{"user_id": 1, "qr_code": testVenueCode + "\n"}, http.StatusBadRequest, ErrCodeInvalidCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/visit", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.status, w.Body.String())
			}
			if er := decodeErr(t, w); er.Code != tc.code {
				t.Fatalf("code=%q want %q", er.Code, tc.code)
			}
		})
	}
}

func TestListVisitsAndBonuses(t *testing.T) {
	l := stubLedger{
		visits: func(_ context.Context, id uint64) ([]domain.Visit, error) {
			if id == 9 {
				return nil, errors.New("db down")
			}
			return []domain.Visit{{ID: 3, UserID: id}, {ID: 1, UserID: id}}, nil
		},
		bonuses: func(_ context.Context, id uint64) ([]domain.Bonus, error) {
			return []domain.Bonus{{ID: 1, UserID: id, Milestone: 10, Kind: domain.BonusKindFreeVisit}}, nil
		},
	}
	r := newTestRouter(l, stubAdmin{}, stubStaff{})

	w := doJSON(t, r, http.MethodGet, "/visits/1", nil)
	var visits []domain.Visit
	if err := json.Unmarshal(w.Body.Bytes(), &visits); err != nil || w.Code != http.StatusOK {
		t.Fatalf("visits status=%d err=%v", w.Code, err)
	}
	if len(visits) != 2 || visits[0].ID != 3 {
		t.Fatalf("order not preserved: %+v", visits)
	}

	w = doJSON(t, r, http.MethodGet, "/bonuses/1", nil)
	var bonuses []domain.Bonus
	if err := json.Unmarshal(w.Body.Bytes(), &bonuses); err != nil || w.Code != http.StatusOK {
		t.Fatalf("bonuses status=%d err=%v", w.Code, err)
	}
	if len(bonuses) != 1 || bonuses[0].Milestone != 10 {
		t.Fatalf("bonuses = %+v", bonuses)
	}

	if w := doJSON(t, r, http.MethodGet, "/visits/9", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("storage error status=%d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/bonuses/x", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", w.Code)
	}
}

func TestListVisits_EmptyIsArray(t *testing.T) {
	r := newTestRouter(stubLedger{}, stubAdmin{}, stubStaff{})
	w := doJSON(t, r, http.MethodGet, "/visits/5", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestRedeemBonus(t *testing.T) {
	used := map[uint64]bool{}
	l := stubLedger{redeem: func(_ context.Context, id uint64) (bool, error) {
		if !utils.ValidID(id) {
			t.Errorf("RedeemBonus reached with id %d", id)
		}
		if id == 500 {
			return false, errors.New("db down")
		}
		if id != 1 || used[id] {
			return false, nil
		}
		used[id] = true
		return true, nil
	}}
	r := newTestRouter(l, stubAdmin{}, stubStaff{})

	decode := func(w interface{ Bytes() []byte }) RedeemBonusResponse {
		var resp RedeemBonusResponse
		if err := json.Unmarshal(w.Bytes(), &resp); err != nil {
			t.Fatalf("json: %v", err)
		}
		return resp
	}

	w := doJSON(t, r, http.MethodPost, "/bonus/use/1", nil)
	if w.Code != http.StatusOK || !decode(w.Body).Success {
		t.Fatalf("first redeem status=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/bonus/use/1", nil)
	if w.Code != http.StatusBadRequest || decode(w.Body).Success {
		t.Fatalf("second redeem status=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/bonus/use/99", nil)
	if w.Code != http.StatusBadRequest || decode(w.Body).Success {
		t.Fatalf("unknown bonus status=%d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/bonus/use/500", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("storage error status=%d", w.Code)
	}
	for _, path := range []string{"/bonus/use/zero", "/bonus/use/9223372036854775808", "/bonus/use/18446744073709551615"} {
		if w := doJSON(t, r, http.MethodPost, path, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d body=%s", path, w.Code, w.Body.String())
		}
	}
}
