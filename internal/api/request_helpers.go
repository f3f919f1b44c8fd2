package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/api/shared"
	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/service"
)

// getPrincipal extracts the authenticated principal (user ID plus roles)
// placed in the context by the authentication middleware.
func getPrincipal(r *http.Request) (service.Principal, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return service.Principal{}, false
	}
	roles, _ := r.Context().Value(shared.RolesContextKey).([]string)
	return service.Principal{UserID: userID, Roles: roles}, true
}

// requirePrincipal is getPrincipal plus the 401 response when absent. A
// missing principal on a protected route means the middleware chain is
// misconfigured, but the client still gets a clean 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	principal, ok := getPrincipal(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
	}
	return principal, ok
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid UUID", domain.ErrValidation, paramName)
	}

	return id, nil
}

// queryDateLayout is the accepted format of the tasks list date filter.
const queryDateLayout = "2006-01-02"

// parseListQuery reads page, per_page, and date from the query string,
// applying defaults for absent parameters. Out-of-range values are left for
// the service to reject so bounds live in one place.
func parseListQuery(r *http.Request) (service.ListTasksInput, error) {
	input := service.ListTasksInput{
		Page:    1,
		PerPage: service.DefaultPerPage,
	}

	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return input, fmt.Errorf("%w: page must be an integer", domain.ErrValidation)
		}
		input.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return input, fmt.Errorf("%w: per_page must be an integer", domain.ErrValidation)
		}
		input.PerPage = perPage
	}
	if raw := q.Get("date"); raw != "" {
		date, err := time.Parse(queryDateLayout, raw)
		if err != nil {
			return input, fmt.Errorf("%w: date must be formatted YYYY-MM-DD", domain.ErrValidation)
		}
		input.Date = &date
	}

	return input, nil
}
