package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/internal/wager-service/validate"
)

const (
	minStake = int64(200)
	maxStake = int64(500000)
)

func TestStake(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		want   fault.Kind
	}{
		{"zero", 0, fault.InvalidArgument},
		{"negative", -100, fault.InvalidArgument},
		{"below minimum", 199, fault.InvalidArgument},
		{"at minimum", 200, ""},
		{"typical", 20000, ""},
		{"at maximum", 500000, ""},
		{"above maximum", 500001, fault.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Stake(tc.amount, minStake, maxStake)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.want, fault.KindOf(err))
		})
	}
}

func TestOdd(t *testing.T) {
	assert.NoError(t, validate.Odd(0)) // zero = usar o board
	assert.NoError(t, validate.Odd(1))
	assert.NoError(t, validate.Odd(2.35))
	assert.NoError(t, validate.Odd(repo.MaxOdd))
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(validate.Odd(0.5)))
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(validate.Odd(-2)))
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(validate.Odd(repo.MaxOdd+1)))
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(validate.Odd(1e18)))
}

func TestSelectionShapePerWagerType(t *testing.T) {
	cases := []struct {
		name string
		wt   repo.WagerType
		sel  repo.Selection
		ok   bool
	}{
		{"win single", repo.WagerWin, repo.Selection{Kind: repo.SelSingle, Entrant: 7}, true},
		{"place single", repo.WagerPlace, repo.Selection{Kind: repo.SelSingle, Entrant: 2}, true},
		{"show single", repo.WagerShow, repo.Selection{Kind: repo.SelSingle, Entrant: 11}, true},
		{"win with ordered shape", repo.WagerWin, repo.Selection{Kind: repo.SelOrdered, Ordered: []int{1, 2}}, false},
		{"empty selection", repo.WagerWin, repo.Selection{Kind: repo.SelSingle}, false},
		{"entrant below 1", repo.WagerWin, repo.Selection{Kind: repo.SelSingle, Entrant: 0}, false},

		{"exacta pair", repo.WagerExacta, repo.Selection{Kind: repo.SelOrdered, Ordered: []int{4, 9}}, true},
		{"exacta with three", repo.WagerExacta, repo.Selection{Kind: repo.SelOrdered, Ordered: []int{4, 9, 1}}, false},
		{"trifecta trio", repo.WagerTrifecta, repo.Selection{Kind: repo.SelOrdered, Ordered: []int{4, 9, 1}}, true},
		{"trifecta with two", repo.WagerTrifecta, repo.Selection{Kind: repo.SelOrdered, Ordered: []int{4, 9}}, false},

		{"quinella pair", repo.WagerQuinella, repo.Selection{Kind: repo.SelByPosition, Positions: map[int][]int{1: {4}, 2: {9}}}, true},
		{"quinella single", repo.WagerQuinella, repo.Selection{Kind: repo.SelByPosition, Positions: map[int][]int{1: {4}}}, false},

		{"daily double two legs", repo.WagerDailyDouble, repo.Selection{Kind: repo.SelByRace, Legs: map[int][]int{1: {3, 5}, 2: {7}}}, true},
		{"daily double one leg", repo.WagerDailyDouble, repo.Selection{Kind: repo.SelByRace, Legs: map[int][]int{1: {3}}}, false},
		{"pick3 three legs", repo.WagerPick3, repo.Selection{Kind: repo.SelByRace, Legs: map[int][]int{1: {3}, 2: {7}, 3: {1, 2}}}, true},
		{"pick3 two legs", repo.WagerPick3, repo.Selection{Kind: repo.SelByRace, Legs: map[int][]int{1: {3}, 2: {7}}}, false},

		{"unknown type", repo.WagerType("SUPERFECTA"), repo.Selection{Kind: repo.SelOrdered, Ordered: []int{1, 2, 3, 4}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Selection(tc.wt, tc.sel)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
		})
	}
}

func TestRaceEligibility(t *testing.T) {
	assert.NoError(t, validate.RaceEligibility(repo.RaceScheduled))
	assert.Equal(t, fault.FailedPrecondition, fault.KindOf(validate.RaceEligibility(repo.RaceInProgress)))
	assert.Equal(t, fault.FailedPrecondition, fault.KindOf(validate.RaceEligibility(repo.RaceFinished)))
}

func TestBalance(t *testing.T) {
	acc := &repo.Account{ID: "u1", BalanceCents: 100000}

	assert.NoError(t, validate.Balance(acc, 100000))
	assert.Equal(t, fault.FailedPrecondition, fault.KindOf(validate.Balance(acc, 100001)))
}

func TestAdmin(t *testing.T) {
	assert.NoError(t, validate.Admin(&repo.Account{ID: "a", Role: repo.RoleAdmin}))
	assert.Equal(t, fault.PermissionDenied, fault.KindOf(validate.Admin(&repo.Account{ID: "u", Role: repo.RoleUser})))
}
