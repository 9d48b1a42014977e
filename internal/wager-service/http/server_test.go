package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/wager-service/dto"
	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	whttp "github.com/radieske/race-wager-engine/internal/wager-service/http"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/internal/wager-service/settlement"
	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// fakes das dependências do server; cada teste sobrescreve só o que usa

type fakeRepo struct {
	getOrCreateFn func(ctx context.Context, accountID string) (*repo.Account, error)
	getAccountFn  func(ctx context.Context, accountID string) (*repo.Account, error)
	placeFn       func(ctx context.Context, accountID, raceID string, wt repo.WagerType, sel repo.Selection, stakeCents int64, odd float64) (string, int64, error)
	cancelFn      func(ctx context.Context, accountID, wagerID string) (int64, int64, string, error)
	getWagerFn    func(ctx context.Context, wagerID string) (*repo.Wager, error)
	createFundsFn func(ctx context.Context, accountID string, kind repo.FundsKind, amountCents int64, method string) (string, error)
	approveFn     func(ctx context.Context, adminID, requestID, method, reference string) (repo.FundsKind, error)
}

func (f *fakeRepo) GetOrCreateAccount(ctx context.Context, id string) (*repo.Account, error) {
	return f.getOrCreateFn(ctx, id)
}
func (f *fakeRepo) GetAccount(ctx context.Context, id string) (*repo.Account, error) {
	return f.getAccountFn(ctx, id)
}
func (f *fakeRepo) PlaceWager(ctx context.Context, accountID, raceID string, wt repo.WagerType, sel repo.Selection, stakeCents int64, odd float64) (string, int64, error) {
	return f.placeFn(ctx, accountID, raceID, wt, sel, stakeCents, odd)
}
func (f *fakeRepo) CancelWager(ctx context.Context, accountID, wagerID string) (int64, int64, string, error) {
	return f.cancelFn(ctx, accountID, wagerID)
}
func (f *fakeRepo) GetWager(ctx context.Context, wagerID string) (*repo.Wager, error) {
	return f.getWagerFn(ctx, wagerID)
}
func (f *fakeRepo) CreateFundsRequest(ctx context.Context, accountID string, kind repo.FundsKind, amountCents int64, method string) (string, error) {
	return f.createFundsFn(ctx, accountID, kind, amountCents, method)
}
func (f *fakeRepo) ApproveFundsRequest(ctx context.Context, adminID, requestID, method, reference string) (repo.FundsKind, error) {
	return f.approveFn(ctx, adminID, requestID, method, reference)
}

type fakeSettler struct {
	settleFn func(ctx context.Context, caller settlement.Caller, raceID string, result events.RaceResult) (*settlement.Summary, error)
}

func (f *fakeSettler) Settle(ctx context.Context, caller settlement.Caller, raceID string, result events.RaceResult) (*settlement.Summary, error) {
	return f.settleFn(ctx, caller, raceID, result)
}

type fakeOdds struct {
	odd float64
	err error
}

func (f *fakeOdds) Current(ctx context.Context, raceID string, wt repo.WagerType, entrant int) (float64, error) {
	return f.odd, f.err
}

type fakeCache struct {
	status repo.RaceStatus
	ok     bool
}

func (f *fakeCache) Get(ctx context.Context, raceID string) (repo.RaceStatus, bool) {
	return f.status, f.ok
}

type fakePublisher struct {
	placed    []events.WagerPlaced
	cancelled []events.WagerCancelled
	settled   []events.RaceSettled
}

func (f *fakePublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	f.placed = append(f.placed, e)
	return nil
}
func (f *fakePublisher) PublishWagerCancelled(ctx context.Context, e events.WagerCancelled) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}
func (f *fakePublisher) PublishRaceSettled(ctx context.Context, e events.RaceSettled) error {
	f.settled = append(f.settled, e)
	return nil
}

type serverDeps struct {
	repo    *fakeRepo
	settler *fakeSettler
	odds    *fakeOdds
	cache   *fakeCache
	pub     *fakePublisher
}

func newTestServer(deps serverDeps) http.Handler {
	if deps.repo == nil {
		deps.repo = &fakeRepo{}
	}
	// conta folgada e admin por padrão; testes das barreiras sobrescrevem
	if deps.repo.getAccountFn == nil {
		deps.repo.getAccountFn = func(_ context.Context, id string) (*repo.Account, error) {
			return &repo.Account{ID: id, BalanceCents: 1 << 40, Role: repo.RoleAdmin}, nil
		}
	}
	if deps.settler == nil {
		deps.settler = &fakeSettler{}
	}
	if deps.odds == nil {
		deps.odds = &fakeOdds{}
	}
	if deps.cache == nil {
		deps.cache = &fakeCache{}
	}
	if deps.pub == nil {
		deps.pub = &fakePublisher{}
	}
	s := whttp.NewServer(zap.NewNop(), deps.repo, deps.settler, deps.odds, deps.cache, deps.pub, 200, 500000)
	return s.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, accountID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set("X-Account-Id", accountID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func placeBody(stake int64, odd float64) dto.PlaceWagerRequest {
	return dto.PlaceWagerRequest{
		RaceID:     "race-1",
		WagerType:  "WIN",
		Selection:  dto.Selection{Kind: "single", Entrant: 7},
		StakeCents: stake,
		Odd:        odd,
	}
}

func TestPlaceWagerRequiresIdentity(t *testing.T) {
	h := newTestServer(serverDeps{})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "", placeBody(20000, 2.0))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthenticated", body.Error)
}

func TestPlaceWagerUsesBoardOdd(t *testing.T) {
	pub := &fakePublisher{}
	var gotOdd float64
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			placeFn: func(_ context.Context, accountID, raceID string, wt repo.WagerType, sel repo.Selection, stake int64, odd float64) (string, int64, error) {
				gotOdd = odd
				return "w1", 80000, nil
			},
		},
		odds: &fakeOdds{odd: 2.0},
		pub:  pub,
	})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "u1", placeBody(20000, 0))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp dto.PlaceWagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "w1", resp.WagerID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, int64(80000), resp.NewBalanceCents)

	// odd zero = fixar a corrente do board
	assert.Equal(t, 2.0, gotOdd)

	require.Len(t, pub.placed, 1)
	assert.Equal(t, "w1", pub.placed[0].WagerID)
	assert.Equal(t, 2.0, pub.placed[0].Odd)
}

func TestPlaceWagerRejectsDriftedOdd(t *testing.T) {
	h := newTestServer(serverDeps{odds: &fakeOdds{odd: 2.5}})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "u1", placeBody(20000, 2.0))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed-precondition", body.Error)
}

func TestPlaceWagerRejectsClosedRaceFromCache(t *testing.T) {
	h := newTestServer(serverDeps{cache: &fakeCache{status: repo.RaceInProgress, ok: true}})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "u1", placeBody(20000, 2.0))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlaceWagerRejectsBadStake(t *testing.T) {
	h := newTestServer(serverDeps{})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "u1", placeBody(50, 2.0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceWagerInsufficientBalanceBeforeTx(t *testing.T) {
	placed := false
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			getAccountFn: func(_ context.Context, id string) (*repo.Account, error) {
				return &repo.Account{ID: id, BalanceCents: 1000, Role: repo.RoleUser}, nil
			},
			placeFn: func(_ context.Context, _, _ string, _ repo.WagerType, _ repo.Selection, _ int64, _ float64) (string, int64, error) {
				placed = true
				return "w1", 0, nil
			},
		},
		odds: &fakeOdds{odd: 2.0},
	})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "u1", placeBody(20000, 2.0))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, placed, "saldo insuficiente não pode chegar na transação")
}

func TestPlaceWagerMalformedBody(t *testing.T) {
	h := newTestServer(serverDeps{})

	req := httptest.NewRequest(http.MethodPost, "/wagers", bytes.NewBufferString("{nope"))
	req.Header.Set("X-Account-Id", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceWagerMasksInternalError(t *testing.T) {
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			placeFn: func(_ context.Context, _, _ string, _ repo.WagerType, _ repo.Selection, _ int64, _ float64) (string, int64, error) {
				return "", 0, fault.Wrap(errors.New("pq: deadlock detected"), "store failure")
			},
		},
		odds: &fakeOdds{odd: 2.0},
	})

	rec := doJSON(t, h, http.MethodPost, "/wagers", "u1", placeBody(20000, 0))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Message)
	assert.NotContains(t, rec.Body.String(), "deadlock")
}

func TestCancelWagerRefunds(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			cancelFn: func(_ context.Context, accountID, wagerID string) (int64, int64, string, error) {
				assert.Equal(t, "u1", accountID)
				assert.Equal(t, "w1", wagerID)
				return 20000, 100000, "race-1", nil
			},
		},
		pub: pub,
	})

	rec := doJSON(t, h, http.MethodPost, "/wagers/w1/cancel", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.CancelWagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)
	assert.Equal(t, int64(20000), resp.RefundedCents)
	assert.Equal(t, int64(100000), resp.NewBalanceCents)

	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, "race-1", pub.cancelled[0].RaceID)
}

func TestCancelWagerSecondTimeConflicts(t *testing.T) {
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			cancelFn: func(_ context.Context, _, _ string) (int64, int64, string, error) {
				return 0, 0, "", fault.New(fault.FailedPrecondition, "wager is not pending")
			},
		},
	})

	rec := doJSON(t, h, http.MethodPost, "/wagers/w1/cancel", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetWagerHidesOtherAccounts(t *testing.T) {
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			getWagerFn: func(_ context.Context, wagerID string) (*repo.Wager, error) {
				return &repo.Wager{ID: wagerID, AccountID: "dona-da-aposta"}, nil
			},
		},
	})

	rec := doJSON(t, h, http.MethodGet, "/wagers/w1", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettleRaceReportsCounts(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestServer(serverDeps{
		settler: &fakeSettler{
			settleFn: func(_ context.Context, caller settlement.Caller, raceID string, result events.RaceResult) (*settlement.Summary, error) {
				assert.Equal(t, "admin-1", caller.AccountID)
				assert.False(t, caller.System)
				assert.Equal(t, 7, result.Winner)
				return &settlement.Summary{TotalBets: 50, TotalWinners: 12, TotalLosers: 38, PaidOutCents: 240000}, nil
			},
		},
		pub: pub,
	})

	body := dto.SettleRaceRequest{}
	body.Result.Winner = 7
	body.Result.Order = []int{7, 3, 1}

	rec := doJSON(t, h, http.MethodPost, "/admin/races/race-1/settle", "admin-1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.SettleRaceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "race-1", resp.RaceID)
	assert.Equal(t, 50, resp.TotalBets)
	assert.Equal(t, 12, resp.TotalWinners)
	assert.Equal(t, 38, resp.TotalLosers)

	require.Len(t, pub.settled, 1)
	assert.Equal(t, int64(240000), pub.settled[0].PaidOutCents)
	assert.Equal(t, "admin-1", pub.settled[0].FinalizedBy)
}

func TestSettleRaceForbiddenForNonAdmin(t *testing.T) {
	h := newTestServer(serverDeps{
		settler: &fakeSettler{
			settleFn: func(_ context.Context, _ settlement.Caller, _ string, _ events.RaceResult) (*settlement.Summary, error) {
				return nil, fault.New(fault.PermissionDenied, "caller is not an admin")
			},
		},
	})

	body := dto.SettleRaceRequest{}
	body.Result.Winner = 7

	rec := doJSON(t, h, http.MethodPost, "/admin/races/race-1/settle", "u1", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettleRaceNonAdminStopsBeforeEngine(t *testing.T) {
	settled := false
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			getAccountFn: func(_ context.Context, id string) (*repo.Account, error) {
				return &repo.Account{ID: id, Role: repo.RoleUser}, nil
			},
		},
		settler: &fakeSettler{
			settleFn: func(_ context.Context, _ settlement.Caller, _ string, _ events.RaceResult) (*settlement.Summary, error) {
				settled = true
				return &settlement.Summary{}, nil
			},
		},
	})

	body := dto.SettleRaceRequest{}
	body.Result.Winner = 7

	rec := doJSON(t, h, http.MethodPost, "/admin/races/race-1/settle", "u1", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, settled, "não-admin não pode chegar no engine")
}

func TestCreateRecharge(t *testing.T) {
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			createFundsFn: func(_ context.Context, accountID string, kind repo.FundsKind, amount int64, method string) (string, error) {
				assert.Equal(t, repo.FundsRecharge, kind)
				assert.Equal(t, int64(50000), amount)
				return "fr-1", nil
			},
		},
	})

	rec := doJSON(t, h, http.MethodPost, "/funds/recharge", "u1", dto.FundsRequestCreate{AmountCents: 50000, PaymentMethod: "pix"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.FundsRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fr-1", resp.RequestID)
	assert.Equal(t, "pending", resp.Status)
}

func TestApproveFunds(t *testing.T) {
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			approveFn: func(_ context.Context, adminID, requestID, method, reference string) (repo.FundsKind, error) {
				assert.Equal(t, "admin-1", adminID)
				assert.Equal(t, "fr-1", requestID)
				return repo.FundsRecharge, nil
			},
		},
	})

	rec := doJSON(t, h, http.MethodPost, "/admin/funds/fr-1/approve", "admin-1", dto.ApproveFundsRequest{PaymentMethod: "pix", PaymentReference: "PIX-9"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.FundsRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "approved", resp.Status)
}

func TestRegisterAndBalance(t *testing.T) {
	h := newTestServer(serverDeps{
		repo: &fakeRepo{
			getOrCreateFn: func(_ context.Context, id string) (*repo.Account, error) {
				return &repo.Account{ID: id, Role: repo.RoleUser}, nil
			},
			getAccountFn: func(_ context.Context, id string) (*repo.Account, error) {
				return &repo.Account{ID: id, BalanceCents: 80000, TotalWageredCents: 20000, Role: repo.RoleUser}, nil
			},
		},
	})

	rec := doJSON(t, h, http.MethodPost, "/accounts", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/accounts/balance", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(80000), resp.BalanceCents)
	assert.Equal(t, int64(20000), resp.TotalWageredCents)
}
