package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"validation", validator.ValidationErrors{{Field: "x", Message: "bad"}}, KindValidation},
		{"wrapped validation", fmt.Errorf("submit: %w", validator.ValidationErrors{{Field: "x", Message: "bad"}}), KindValidation},
		{"not found", New(ErrNotFound, "site not found"), KindNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", New(ErrNotFound, "site not found")), KindNotFound},
		{"authorization", New(ErrAuthorization, "supervisor role required"), KindAuthorization},
		{"integrity", New(ErrIntegrity, "hash mismatch"), KindIntegrity},
		{"conflict", New(ErrConflict, "chain tail moved"), KindConflict},
		{"transient", Transient(errors.New("connection reset")), KindTransient},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, KindOf(c.err))
		})
	}
}

func TestTransient_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransient)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "connection reset", err.Error())
	assert.Nil(t, Transient(nil))
}
