package controller

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

type MembershipService interface {
	ListMembers(ctx context.Context, req models.ListMembersRequest) (commons.Response[[]models.MemberResponse], error)
	FindByEmail(ctx context.Context, req models.LookupMemberRequest) (commons.Response[[]models.MemberResponse], error)
}

type MemberController struct {
	service MembershipService
}

func NewMemberController(service MembershipService) *MemberController {
	return &MemberController{service: service}
}

func (c *MemberController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	list := http.Handler(http.HandlerFunc(c.list))
	lookup := http.Handler(http.HandlerFunc(c.lookup))
	if authMiddleware != nil {
		list = authMiddleware(list)
		lookup = authMiddleware(lookup)
	}

	mux.Handle("/members", list)
	mux.Handle("/members/lookup", lookup)
}

func (c *MemberController) list(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		response := commons.ErrorResponse[[]models.MemberResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	limit, limitErr := queryInt(r, "limit")
	offset, offsetErr := queryInt(r, "offset")
	if limitErr != nil || offsetErr != nil {
		response := commons.ErrorResponse[[]models.MemberResponse]("validation failed", "limit and offset must be integers")
		writeJSON(w, http.StatusBadRequest, response)
		logResponse(r, http.StatusBadRequest, response, start)
		return
	}

	c.respond(w, r, start)(c.service.ListMembers(r.Context(), models.ListMembersRequest{Limit: limit, Offset: offset}))
}

func (c *MemberController) lookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		response := commons.ErrorResponse[[]models.MemberResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	c.respond(w, r, start)(c.service.FindByEmail(r.Context(), models.LookupMemberRequest{Email: r.URL.Query().Get("email")}))
}

func (c *MemberController) respond(w http.ResponseWriter, r *http.Request, start time.Time) func(commons.Response[[]models.MemberResponse], error) {
	return func(response commons.Response[[]models.MemberResponse], err error) {
		if err != nil {
			logError(r, err, logger.Fields{"message": response.Message})
			status := statusFor(err)
			writeJSON(w, status, response)
			logResponse(r, status, response, start)
			return
		}

		writeJSON(w, http.StatusOK, response)
		logResponse(r, http.StatusOK, response, start)
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
