package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
)

func TestNewCarriesKindAndMessage(t *testing.T) {
	err := fault.New(fault.FailedPrecondition, "insufficient balance")

	fe := fault.As(err)
	require.NotNil(t, fe)
	assert.Equal(t, fault.FailedPrecondition, fe.Kind)
	assert.Equal(t, "insufficient balance", fe.Message)
	assert.Equal(t, "failed-precondition: insufficient balance", err.Error())
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	orig := fault.New(fault.NotFound, "wager not found")

	wrapped := fault.Wrap(orig, "store failure")
	assert.Equal(t, fault.NotFound, fault.KindOf(wrapped))
}

func TestWrapUntypedBecomesInternal(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")

	err := fault.Wrap(cause, "store failure")
	assert.Equal(t, fault.Internal, fault.KindOf(err))
	// a causa original continua acessível pra log
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfUntyped(t *testing.T) {
	assert.Equal(t, fault.Internal, fault.KindOf(errors.New("boom")))
}
