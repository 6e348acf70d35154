package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

const (
	badCredentials = "invalid email or password"
	// bcrypt rejects longer input; the validator's max counts runes
	maxPasswordBytes = 72
)

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := a.check(req); err != nil {
		a.fail(w, r, err)
		return
	}
	if len(req.Password) > maxPasswordBytes {
		a.fail(w, r, errValidation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		a.fail(w, r, errValidation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.store.CreateUser(r.Context(), req.Name, req.Email, string(hash))
	if errors.Is(err, ErrConflict) {
		a.fail(w, r, errConflict("email already in use"))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, err := a.tokens.Issue(u.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := a.check(req); err != nil {
		a.fail(w, r, err)
		return
	}
	u, hash, err := a.store.userCredsByEmail(r.Context(), req.Email)
	if errors.Is(err, ErrNotFound) {
		a.fail(w, r, errAuth(badCredentials))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		a.fail(w, r, errAuth(badCredentials))
		return
	}
	token, err := a.tokens.Issue(u.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.GetUser(r.Context(), currentUserID(r))
	if err != nil {
		a.fail(w, r, notFoundAs(err, "user"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}
