package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clawlink/clawlink/internal/apperr"
)

func TestWriteErrClassifiesSQLiteConstraints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{
			name: "duplicate row",
			err:  errors.New("constraint failed: UNIQUE constraint failed: agents.handle (2067)"),
			kind: apperr.Conflict,
		},
		{
			name: "foreign key",
			err:  errors.New("constraint failed: FOREIGN KEY constraint failed (787)"),
			kind: apperr.Internal,
		},
		{
			name: "check",
			err:  errors.New("constraint failed: CHECK constraint failed: agent1_id < agent2_id (275)"),
			kind: apperr.Internal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeErr(tt.err, "already exists")
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}
