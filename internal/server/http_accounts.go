package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// handleCreateAccount handles POST /v1/accounts. This is the only route
// that is not tenant-scoped: it creates the tenant.
func (s *FizzyServer) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := idgen.NewEntityID("acc-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	account := &model.Account{ID: id, Name: in.Name, CreatedAt: time.Now().UTC()}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// handleCreateUser handles POST /v1/users.
func (s *FizzyServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in struct {
		Handle string `json:"handle"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	id, err := idgen.NewEntityID("usr-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	user := &model.User{
		ID: id, AccountID: accountID, Handle: in.Handle, Name: in.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleListUsers handles GET /v1/users.
func (s *FizzyServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := s.store.ListUsers(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleCreateBoard handles POST /v1/boards.
func (s *FizzyServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := idgen.NewEntityID(idgen.PrefixBoard)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	board := &model.Board{
		ID: id, AccountID: accountID, Name: in.Name,
		CreatedAt: time.Now().UTC(), CreatedBy: actor(r),
	}

	err = s.mutate(r.Context(), func(tx store.Store) error {
		if err := tx.CreateBoard(r.Context(), board); err != nil {
			return err
		}
		return s.record(r.Context(), tx, &model.Event{
			AccountID:   accountID,
			SubjectType: model.SubjectBoard,
			SubjectID:   board.ID,
			Action:      model.ActionCreated,
			ActorID:     actor(r),
		})
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create board")
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

// handleListBoards handles GET /v1/boards.
func (s *FizzyServer) handleListBoards(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	boards, err := s.store.ListBoards(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list boards")
		return
	}
	if boards == nil {
		boards = []*model.Board{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

// handleGetBoard handles GET /v1/boards/{id}.
func (s *FizzyServer) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := s.store.GetBoard(r.Context(), accountID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "board not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get board")
		return
	}
	writeJSON(w, http.StatusOK, board)
}
