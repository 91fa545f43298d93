package web

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/spreadsheet"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation issue", &core.ValidationIssue{Row: 2, Field: core.FieldEmail, Message: "x"}, http.StatusUnprocessableEntity},
		{"header error", &core.HeaderError{Missing: []string{core.ColDocument}}, http.StatusUnprocessableEntity},
		{"gateway", &core.GatewayError{Op: "persist onboarding", Err: errors.New("boom")}, http.StatusBadGateway},
		{"session not found", core.ErrSessionNotFound, http.StatusNotFound},
		{"wrapped row not found", fmt.Errorf("row 9: %w", core.ErrRowNotFound), http.StatusNotFound},
		{"submitted", core.ErrSessionSubmitted, http.StatusConflict},
		{"duplicate", fmt.Errorf("123: %w", core.ErrDuplicateDocument), http.StatusConflict},
		{"facility in use", core.ErrFacilityInUse, http.StatusConflict},
		{"busy", core.ErrTooManyImports, http.StatusServiceUnavailable},
		{"unsupported", fmt.Errorf("%w: %q", spreadsheet.ErrUnsupportedType, ".pdf"), http.StatusUnsupportedMediaType},
		{"too big", errFileTooBig, http.StatusRequestEntityTooLarge},
		{"rate limited", errRateLimited, http.StatusTooManyRequests},
		{"known input error", core.ErrRowCount, http.StatusBadRequest},
		{"bad body", fmt.Errorf("%w: EOF", errBadBody), http.StatusBadRequest},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestErrorBody_LocatesValidationIssue(t *testing.T) {
	issue := &core.ValidationIssue{Section: "usuarios", Row: 4, Field: core.FieldEmail, Message: "Correo inválido"}
	body := errorBody(issue, core.MapError(issue))

	assert.Equal(t, 4, body.Row)
	assert.Equal(t, core.FieldEmail, body.Field)
	assert.Equal(t, "Correo inválido", body.Message)
	assert.Equal(t, "Fila 4: Correo inválido", body.Error)
	assert.Equal(t, "VAL001", body.Code)
}

func TestErrorBody_ListsMissingColumns(t *testing.T) {
	err := &core.HeaderError{Missing: []string{core.ColDocument, core.ColFacility}}
	body := errorBody(err, core.MapError(err))

	assert.Equal(t, "VAL004", body.Code)
	assert.Equal(t, []string{core.ColDocument, core.ColFacility}, body.Missing)
}
