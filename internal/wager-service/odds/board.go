package odds

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
)

// Board lê as odds correntes publicadas pelo feed no Redis.
// Chave "odds:{raceID}:{wagerType}:{entrant}" => odd decimal em string, ex: "2.35".
// O engine nunca calcula odds; só consome o que o fornecedor publicou.
type Board struct {
	Rdb *redis.Client
}

func NewBoard(r *redis.Client) *Board { return &Board{Rdb: r} }

// Multiplicadores estáticos por tipo, usados quando o board não tem cotação
// pra corrida (cartões sem feed de odds).
var staticOdds = map[repo.WagerType]float64{
	repo.WagerWin:         2.0,
	repo.WagerPlace:       1.5,
	repo.WagerShow:        1.2,
	repo.WagerExacta:      6.0,
	repo.WagerQuinella:    4.0,
	repo.WagerTrifecta:    20.0,
	repo.WagerDailyDouble: 8.0,
	repo.WagerPick3:       25.0,
}

func key(raceID string, wt repo.WagerType, entrant int) string {
	return fmt.Sprintf("odds:%s:%s:%d", raceID, wt, entrant)
}

// Current retorna a odd corrente do board, ou o multiplicador estático do
// tipo quando não há cotação publicada.
func (b *Board) Current(ctx context.Context, raceID string, wt repo.WagerType, entrant int) (float64, error) {
	val, err := b.Rdb.Get(ctx, key(raceID, wt, entrant)).Result()
	if err == redis.Nil {
		return staticOdds[wt], nil
	}
	if err != nil {
		return 0, err
	}
	odd, err := strconv.ParseFloat(val, 64)
	if err != nil || odd < 1 {
		return staticOdds[wt], nil
	}
	return odd, nil
}

// Drifted compara a odd que o cliente viu com a corrente. Tolerância de 1%
// pra não rejeitar por ruído de arredondamento.
func Drifted(seen, current float64) bool {
	if current == 0 {
		return false
	}
	return math.Abs(seen-current)/current > 0.01
}

// Set publica uma cotação no board (usado pelo worker do feed).
func (b *Board) Set(ctx context.Context, raceID string, wt repo.WagerType, entrant int, odd float64) error {
	return b.Rdb.Set(ctx, key(raceID, wt, entrant), strconv.FormatFloat(odd, 'f', -1, 64), 0).Err()
}
