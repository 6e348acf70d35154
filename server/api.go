package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *api) routes(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("POST /api/auth/register", a.withRateLimit(a.handleRegister))
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit(a.handleLogin))
	mux.HandleFunc("GET /api/auth/me", a.requireAuth(a.handleMe))

	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Boards
	mux.HandleFunc("GET /api/boards", a.requireAuth(a.handleListBoards))
	mux.HandleFunc("POST /api/boards", a.requireAuth(a.handleCreateBoard))
	mux.HandleFunc("GET /api/boards/{ref}", a.requireAuth(a.handleGetBoard))
	mux.HandleFunc("GET /api/boards/{ref}/full", a.requireAuth(a.handleGetBoardFull))
	mux.HandleFunc("PUT /api/boards/{ref}", a.requireAuth(a.handleUpdateBoard))
	mux.HandleFunc("DELETE /api/boards/{ref}", a.requireAuth(a.handleDeleteBoard))

	// Members
	mux.HandleFunc("GET /api/boards/{ref}/members", a.requireAuth(a.handleListMembers))
	mux.HandleFunc("POST /api/boards/{ref}/members", a.requireAuth(a.handleInviteMember))
	mux.HandleFunc("PUT /api/boards/{ref}/members/{memberId}", a.requireAuth(a.handleChangeMemberRole))
	mux.HandleFunc("DELETE /api/boards/{ref}/members/{memberId}", a.requireAuth(a.handleRemoveMember))

	// Lists
	mux.HandleFunc("GET /api/boards/{ref}/lists", a.requireAuth(a.handleListsByBoard))
	mux.HandleFunc("POST /api/boards/{ref}/lists", a.requireAuth(a.handleCreateList))
	mux.HandleFunc("PUT /api/lists/{id}", a.requireAuth(a.handleUpdateList))
	mux.HandleFunc("DELETE /api/lists/{id}", a.requireAuth(a.handleDeleteList))

	// Cards
	mux.HandleFunc("GET /api/boards/{ref}/cards", a.requireAuth(a.handleCardsByBoard))
	mux.HandleFunc("POST /api/lists/{id}/cards", a.requireAuth(a.handleCreateCard))
	mux.HandleFunc("GET /api/cards/{id}", a.requireAuth(a.handleGetCard))
	mux.HandleFunc("PUT /api/cards/{id}", a.requireAuth(a.handleUpdateCard))
	mux.HandleFunc("DELETE /api/cards/{id}", a.requireAuth(a.handleDeleteCard))
	mux.HandleFunc("GET /api/cards/{id}/comments", a.requireAuth(a.handleCommentsByCard))
	mux.HandleFunc("POST /api/cards/{id}/comments", a.requireAuth(a.handleAddComment))

	// Drag and drop
	mux.HandleFunc("PUT /api/list-reorder", a.requireAuth(a.handleListReorder))
	mux.HandleFunc("PUT /api/card-reorder", a.requireAuth(a.handleCardReorder))
}

// handler is the complete HTTP surface with request logging and metrics.
func (a *api) handler() http.Handler {
	mux := http.NewServeMux()
	a.routes(mux)
	return withLogging(a.log, mux)
}
