package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/wager-service/dto"
	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/internal/wager-service/metrics"
	"github.com/radieske/race-wager-engine/internal/wager-service/odds"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/internal/wager-service/settlement"
	"github.com/radieske/race-wager-engine/internal/wager-service/validate"
	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// Repo define as operações de persistência usadas pelos handlers.
type Repo interface {
	GetOrCreateAccount(ctx context.Context, accountID string) (*repo.Account, error)
	GetAccount(ctx context.Context, accountID string) (*repo.Account, error)
	PlaceWager(ctx context.Context, accountID, raceID string, wt repo.WagerType, sel repo.Selection, stakeCents int64, odd float64) (string, int64, error)
	CancelWager(ctx context.Context, accountID, wagerID string) (refundCents int64, newBalance int64, raceID string, err error)
	GetWager(ctx context.Context, wagerID string) (*repo.Wager, error)
	CreateFundsRequest(ctx context.Context, accountID string, kind repo.FundsKind, amountCents int64, method string) (string, error)
	ApproveFundsRequest(ctx context.Context, adminID, requestID, method, reference string) (repo.FundsKind, error)
}

// Settler liquida uma corrida (engine de liquidação).
type Settler interface {
	Settle(ctx context.Context, caller settlement.Caller, raceID string, result events.RaceResult) (*settlement.Summary, error)
}

// OddsSource devolve a odd corrente de uma seleção.
type OddsSource interface {
	Current(ctx context.Context, raceID string, wt repo.WagerType, entrant int) (float64, error)
}

// StatusCache é o caminho rápido de elegibilidade da corrida.
type StatusCache interface {
	Get(ctx context.Context, raceID string) (repo.RaceStatus, bool)
}

// Publisher emite os eventos do engine (best-effort; falha não aborta a operação).
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
	PublishWagerCancelled(ctx context.Context, e events.WagerCancelled) error
	PublishRaceSettled(ctx context.Context, e events.RaceSettled) error
}

// Server expõe a API HTTP do engine de apostas.
type Server struct {
	log     *zap.Logger
	repo    Repo
	settler Settler
	odds    OddsSource
	rcache  StatusCache
	publ    Publisher

	minStakeCents int64
	maxStakeCents int64
}

func NewServer(log *zap.Logger, r Repo, s Settler, o OddsSource, rc StatusCache, p Publisher, minStake, maxStake int64) *Server {
	return &Server{
		log: log, repo: r, settler: s, odds: o, rcache: rc, publ: p,
		minStakeCents: minStake, maxStakeCents: maxStake,
	}
}

// Router monta as rotas da API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/accounts", s.registerAccount)
	r.Get("/accounts/balance", s.getBalance)
	r.Post("/wagers", s.placeWager)
	r.Get("/wagers/{id}", s.getWager)
	r.Post("/wagers/{id}/cancel", s.cancelWager)
	r.Post("/funds/recharge", s.createRecharge)
	r.Post("/funds/withdraw", s.createWithdrawal)
	r.Post("/admin/races/{id}/settle", s.settleRace)
	r.Post("/admin/funds/{id}/approve", s.approveFunds)
	return r
}

// callerID extrai a identidade injetada pelo gateway. Autenticação em si é
// responsabilidade de fora; aqui só exigimos que exista.
func callerID(r *http.Request) string {
	return r.Header.Get("X-Account-Id")
}

// registerAccount cria (ou retorna) a conta do chamador.
func (s *Server) registerAccount(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if id == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	acc, err := s.repo.GetOrCreateAccount(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountDTO(acc))
}

// getBalance retorna saldo e agregados da conta do chamador.
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if id == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	acc, err := s.repo.GetAccount(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountDTO(acc))
}

// placeWager coloca uma aposta: valida no caminho rápido, resolve a odd no
// board e delega a transação atômica ao repositório.
func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	accountID := callerID(r)
	if accountID == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}

	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fault.New(fault.InvalidArgument, "malformed json body"))
		return
	}
	if req.RaceID == "" || req.WagerType == "" {
		writeErr(w, fault.New(fault.InvalidArgument, "raceId and wager_type are required"))
		return
	}

	wt := repo.WagerType(req.WagerType)
	sel := selectionModel(req.Selection)

	// Caminho rápido, pré-transação. O repositório re-checa tudo de novo
	// com as linhas travadas.
	if err := validate.Stake(req.StakeCents, s.minStakeCents, s.maxStakeCents); err != nil {
		rejected(w, err)
		return
	}
	if err := validate.Odd(req.Odd); err != nil {
		rejected(w, err)
		return
	}
	if err := validate.Selection(wt, sel); err != nil {
		rejected(w, err)
		return
	}
	if st, ok := s.rcache.Get(r.Context(), req.RaceID); ok {
		if err := validate.RaceEligibility(st); err != nil {
			rejected(w, err)
			return
		}
	}
	// Checagem de saldo sem lock: corta a transação inútil; se a leitura
	// falhar, deixa a decisão para o repositório.
	if acc, aerr := s.repo.GetAccount(r.Context(), accountID); aerr == nil {
		if err := validate.Balance(acc, req.StakeCents); err != nil {
			rejected(w, err)
			return
		}
	}

	// Odd fixada na colocação: ou a corrente do board, ou a que o cliente
	// viu — desde que não tenha driftado.
	odd := req.Odd
	current, err := s.odds.Current(r.Context(), req.RaceID, wt, sel.Entrant)
	if err != nil {
		s.log.Warn("odds board read failed", zap.Error(err))
		current = 0
	}
	if odd == 0 {
		if current == 0 {
			rejected(w, fault.New(fault.FailedPrecondition, "no current odd available for selection"))
			return
		}
		odd = current
	} else if current != 0 && odds.Drifted(odd, current) {
		rejected(w, fault.New(fault.FailedPrecondition, "odd changed since it was quoted"))
		return
	}

	wagerID, newBalance, err := s.repo.PlaceWager(r.Context(), accountID, req.RaceID, wt, sel, req.StakeCents, odd)
	if err != nil {
		rejected(w, err)
		return
	}

	metrics.WagersPlaced.Inc()
	_ = s.publ.PublishWagerPlaced(r.Context(), events.WagerPlaced{
		WagerID:    wagerID,
		AccountID:  accountID,
		RaceID:     req.RaceID,
		WagerType:  string(wt),
		StakeCents: req.StakeCents,
		Odd:        odd,
	})

	writeJSON(w, http.StatusCreated, dto.PlaceWagerResponse{
		WagerID:         wagerID,
		Status:          string(repo.WagerPending),
		NewBalanceCents: newBalance,
	})
}

// cancelWager estorna uma aposta pending do próprio dono.
func (s *Server) cancelWager(w http.ResponseWriter, r *http.Request) {
	accountID := callerID(r)
	if accountID == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	wagerID := chi.URLParam(r, "id")

	refund, newBalance, raceID, err := s.repo.CancelWager(r.Context(), accountID, wagerID)
	if err != nil {
		writeErr(w, err)
		return
	}

	metrics.WagersCancelled.Inc()
	_ = s.publ.PublishWagerCancelled(r.Context(), events.WagerCancelled{
		WagerID:       wagerID,
		AccountID:     accountID,
		RaceID:        raceID,
		RefundedCents: refund,
	})

	writeJSON(w, http.StatusOK, dto.CancelWagerResponse{
		WagerID:         wagerID,
		Status:          string(repo.WagerCancelled),
		RefundedCents:   refund,
		NewBalanceCents: newBalance,
	})
}

// getWager consulta o status de uma aposta do chamador.
func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	accountID := callerID(r)
	if accountID == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	wg, err := s.repo.GetWager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if wg.AccountID != accountID {
		writeErr(w, fault.New(fault.NotFound, "wager not found"))
		return
	}
	writeJSON(w, http.StatusOK, dto.WagerStatusResponse{
		WagerID:     wg.ID,
		RaceID:      wg.RaceID,
		WagerType:   string(wg.Type),
		StakeCents:  wg.StakeCents,
		Odd:         wg.Odd,
		Status:      string(wg.Status),
		PayoutCents: wg.PayoutCents,
	})
}

// settleRace liquida a corrida em nome de um admin. A capability é
// re-verificada dentro da transação do engine.
func (s *Server) settleRace(w http.ResponseWriter, r *http.Request) {
	accountID := callerID(r)
	if accountID == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	raceID := chi.URLParam(r, "id")

	var req dto.SettleRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fault.New(fault.InvalidArgument, "malformed json body"))
		return
	}

	// Barreira barata antes do engine; ele re-verifica o papel com a linha
	// travada de qualquer forma.
	if acc, aerr := s.repo.GetAccount(r.Context(), accountID); aerr == nil {
		if err := validate.Admin(acc); err != nil {
			writeErr(w, err)
			return
		}
	}

	start := time.Now()
	sum, err := s.settler.Settle(r.Context(), settlement.Caller{AccountID: accountID}, raceID, events.RaceResult{
		Winner:     req.Result.Winner,
		Place:      req.Result.Place,
		Show:       req.Result.Show,
		Order:      req.Result.Order,
		LegWinners: req.Result.LegWinners,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	metrics.RacesSettled.Inc()
	metrics.WagersSettled.WithLabelValues("won").Add(float64(sum.TotalWinners))
	metrics.WagersSettled.WithLabelValues("lost").Add(float64(sum.TotalLosers))

	_ = s.publ.PublishRaceSettled(r.Context(), events.RaceSettled{
		RaceID:       raceID,
		TotalBets:    sum.TotalBets,
		TotalWinners: sum.TotalWinners,
		TotalLosers:  sum.TotalLosers,
		PaidOutCents: sum.PaidOutCents,
		FinalizedBy:  accountID,
	})

	writeJSON(w, http.StatusOK, dto.SettleRaceResponse{
		RaceID:       raceID,
		TotalBets:    sum.TotalBets,
		TotalWinners: sum.TotalWinners,
		TotalLosers:  sum.TotalLosers,
	})
}

// createRecharge registra um pedido de recarga pending.
func (s *Server) createRecharge(w http.ResponseWriter, r *http.Request) {
	s.createFunds(w, r, repo.FundsRecharge)
}

// createWithdrawal registra um pedido de saque pending.
func (s *Server) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.createFunds(w, r, repo.FundsWithdrawal)
}

func (s *Server) createFunds(w http.ResponseWriter, r *http.Request, kind repo.FundsKind) {
	accountID := callerID(r)
	if accountID == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	var req dto.FundsRequestCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fault.New(fault.InvalidArgument, "malformed json body"))
		return
	}
	id, err := s.repo.CreateFundsRequest(r.Context(), accountID, kind, req.AmountCents, req.PaymentMethod)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FundsRequestResponse{RequestID: id, Status: string(repo.FundsPending)})
}

// approveFunds aprova um pedido de fundos em nome de um admin.
func (s *Server) approveFunds(w http.ResponseWriter, r *http.Request) {
	accountID := callerID(r)
	if accountID == "" {
		writeErr(w, fault.New(fault.Unauthenticated, "missing caller identity"))
		return
	}
	var req dto.ApproveFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fault.New(fault.InvalidArgument, "malformed json body"))
		return
	}
	if acc, aerr := s.repo.GetAccount(r.Context(), accountID); aerr == nil {
		if err := validate.Admin(acc); err != nil {
			writeErr(w, err)
			return
		}
	}
	kind, err := s.repo.ApproveFundsRequest(r.Context(), accountID, chi.URLParam(r, "id"), req.PaymentMethod, req.PaymentReference)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.FundsApproved.WithLabelValues(string(kind)).Inc()
	writeJSON(w, http.StatusOK, dto.FundsRequestResponse{RequestID: chi.URLParam(r, "id"), Status: string(repo.FundsApproved)})
}

func accountDTO(a *repo.Account) dto.AccountResponse {
	return dto.AccountResponse{
		AccountID:         a.ID,
		BalanceCents:      a.BalanceCents,
		TotalWageredCents: a.TotalWageredCents,
		TotalWonCents:     a.TotalWonCents,
		TotalLostCents:    a.TotalLostCents,
		Role:              string(a.Role),
	}
}

func selectionModel(s dto.Selection) repo.Selection {
	return repo.Selection{
		Kind:      repo.SelectionKind(s.Kind),
		Entrant:   s.Entrant,
		Ordered:   s.Ordered,
		Positions: s.Positions,
		Legs:      s.Legs,
	}
}

// rejected conta a rejeição na métrica antes de responder o erro.
func rejected(w http.ResponseWriter, err error) {
	metrics.WagersRejected.WithLabelValues(string(fault.KindOf(err))).Inc()
	writeErr(w, err)
}

// writeErr mapeia o kind do erro pro status HTTP e esconde detalhes de
// falhas internas.
func writeErr(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	msg := err.Error()
	if fe := fault.As(err); fe != nil {
		msg = fe.Message
	}

	status := http.StatusInternalServerError
	switch kind {
	case fault.Unauthenticated:
		status = http.StatusUnauthorized
	case fault.PermissionDenied:
		status = http.StatusForbidden
	case fault.InvalidArgument:
		status = http.StatusBadRequest
	case fault.FailedPrecondition:
		status = http.StatusConflict
	case fault.NotFound:
		status = http.StatusNotFound
	case fault.Internal:
		msg = "internal error"
	}

	writeJSON(w, status, dto.ErrorResponse{Error: string(kind), Message: msg})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
