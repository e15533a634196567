package dto

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"not found", domain.NewNotFoundError("quote", "loc-1"), http.StatusNotFound, ErrorCodeNotFound, ""},
		{"sync in progress", domain.ErrSyncInProgress, http.StatusConflict, ErrorCodeConflict, ""},
		{"validation with field", domain.NewValidationError("category", "unknown category"), http.StatusBadRequest, ErrorCodeValidation, "category"},
		{"validation without field", domain.NewValidationError("", "import file must contain a JSON array of quotes"), http.StatusBadRequest, ErrorCodeValidation, ""},
		{"malformed", domain.NewMalformedError("import payload", errors.New("eof")), http.StatusBadRequest, ErrorCodeBadRequest, ""},
		{"forbidden", domain.NewForbiddenError("archive", "access denied"), http.StatusForbidden, ErrorCodeForbidden, ""},
		{"unavailable", domain.NewUnavailableError("archive", "not configured"), http.StatusServiceUnavailable, ErrorCodeUnavailable, ""},
		{"wrapped", fmt.Errorf("saving: %w", domain.NewNotFoundError("preference", "x")), http.StatusNotFound, ErrorCodeNotFound, ""},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ErrorCodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantStatus, HTTPStatusFromCode(resp.Error.Code))

			if tt.wantField != "" {
				assert.Contains(t, resp.Error.Details, tt.wantField)
			}
		})
	}

	_, resp := MapError(errors.New("disk on fire"))
	assert.NotContains(t, resp.Error.Message, "disk", "internal errors must not leak")
}

func TestHTTPStatusFromCode_RateLimited(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(ErrorCodeRateLimited))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatusFromCode(ErrorCodeUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "id-" + strconv.Itoa(10+i)
	}

	return out
}

func identity(s string) string { return s }

func TestPaginate(t *testing.T) {
	items := ids(5)

	first, err := Paginate(items, PageRequest{Limit: 2}, identity, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-10", "id-11"}, first.Items)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	second, err := Paginate(items, PageRequest{Limit: 2, Cursor: first.NextCursor}, identity, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-12", "id-13"}, second.Items)

	last, err := Paginate(items, PageRequest{Limit: 2, Cursor: second.NextCursor}, identity, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-14"}, last.Items)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextCursor)
}

func TestPaginate_CursorPastDeletedID(t *testing.T) {
	items := []string{"a", "c", "d"}

	page, err := Paginate(items, PageRequest{Cursor: EncodeCursor("b")}, identity, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, page.Items)
}

func TestPaginate_Empty(t *testing.T) {
	page, err := Paginate([]string{}, PageRequest{}, identity, identity)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestDecodeCursor(t *testing.T) {
	id, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = DecodeCursor(EncodeCursor("loc-9"))
	require.NoError(t, err)
	assert.Equal(t, "loc-9", id)

	for _, bad := range []string{"!!!", "bm90LWpzb24", EncodeCursor("")} {
		_, err := DecodeCursor(bad)
		require.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestPageRequest_PageLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, (&PageRequest{}).PageLimit())
	assert.Equal(t, 5, (&PageRequest{Limit: 5}).PageLimit())
	assert.Equal(t, MaxLimit, (&PageRequest{Limit: 1000}).PageLimit())
}

func TestValidate_CreateQuoteRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        CreateQuoteRequest
		wantFields map[string]string
	}{
		{"valid", CreateQuoteRequest{Text: "Keep going.", Category: "Motivation"}, nil},
		{"missing text", CreateQuoteRequest{Category: "Motivation"}, map[string]string{"text": "this field is required"}},
		{"blank category", CreateQuoteRequest{Text: "Keep going.", Category: "   "}, map[string]string{"category": "must not be blank"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.wantFields, ValidationErrors(err))
		})
	}
}

func TestValidate_SyncPolicyRequest(t *testing.T) {
	require.NoError(t, Validate(SyncPolicyRequest{Policy: "manual"}))

	err := Validate(SyncPolicyRequest{Policy: "client_wins"})
	require.Error(t, err)
	assert.Equal(t, "must be one of: server_wins manual", ValidationErrors(err)["policy"])
}

func TestNewSyncReportResponse(t *testing.T) {
	assert.Nil(t, NewSyncReportResponse(nil))

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	local := domain.Quote{ID: "srv-1", Text: "mine", Category: "A", UpdatedAt: start, Source: domain.SourceLocal}
	remote := domain.Quote{ID: "srv-1", Text: "theirs", Category: "A", UpdatedAt: start, Source: domain.SourceServer}

	resp := NewSyncReportResponse(&app.SyncReport{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Policy:     domain.PolicyServerWins,
		Fetched:    15,
		Inserted:   2,
		Conflicts:  []domain.Conflict{{ID: "srv-1", Local: local, Remote: remote, Resolution: domain.KeepRemote}},
		Pushed:     1,
	})

	require.NotNil(t, resp)
	assert.Equal(t, int64(1500), resp.DurationMS)
	assert.Equal(t, "server_wins", resp.Policy)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "remote", resp.Conflicts[0].Resolution)
	assert.Equal(t, "theirs", resp.Conflicts[0].Remote.Text)
	assert.Equal(t, start.UnixMilli(), resp.Conflicts[0].Local.UpdatedAt)
}
