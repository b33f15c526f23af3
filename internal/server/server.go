// Package server exposes playback control over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
	"github.com/jscyril/crossfade_player/internal/playlist"
	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

// Controller is implemented by *playback.Service.
type Controller interface {
	Play(index int) error
	Next() error
	Previous() error
	Pause() error
	Resume() error
	Stop()
	SetVolume(v float64) error
	SetMuted(muted bool)
	Seek(seconds float64) error
	SetRepeatMode(mode api.RepeatMode)
	SetShuffle(shuffle bool)
	Status() api.Status
}

type handler struct {
	ctl Controller
}

// New returns the router serving the control API under /api.
func New(ctl Controller) chi.Router {
	h := handler{ctl: ctl}

	r := chi.NewRouter()
	r.Use(LogHandler)
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/status", h.status)
		r.Post("/play", h.play)
		r.Post("/next", h.action(ctl.Next))
		r.Post("/previous", h.action(ctl.Previous))
		r.Post("/pause", h.action(ctl.Pause))
		r.Post("/resume", h.action(ctl.Resume))
		r.Post("/stop", h.action(func() error {
			ctl.Stop()
			return nil
		}))
		r.Put("/volume", h.setVolume)
		r.Put("/mute", h.setMuted)
		r.Put("/position", h.setPosition)
		r.Put("/repeat", h.setRepeat)
		r.Put("/shuffle", h.setShuffle)
	})
	return r
}

// Serve runs the API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, ctl Controller) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(ctl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"component": "server", "address": addr}).Info("serving control API")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (h handler) status(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.ctl.Status())
}

func (h handler) play(w http.ResponseWriter, r *http.Request) {
	index := -1
	if s := r.URL.Query().Get("index"); s != "" {
		i, err := strconv.Atoi(s)
		if err != nil {
			WriteError(w, r, fmt.Errorf("invalid index %q", s), http.StatusBadRequest)
			return
		}
		index = i
	}
	h.respond(w, r, h.ctl.Play(index))
}

func (h handler) action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respond(w, r, fn())
	}
}

func (h handler) setVolume(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Volume *float64 `json:"volume"`
	}
	if !decode(w, r, &data) {
		return
	}
	if data.Volume == nil {
		WriteError(w, r, errors.New("missing `volume`"), http.StatusBadRequest)
		return
	}
	h.respond(w, r, h.ctl.SetVolume(*data.Volume))
}

func (h handler) setMuted(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Muted bool `json:"muted"`
	}
	if !decode(w, r, &data) {
		return
	}
	h.ctl.SetMuted(data.Muted)
	h.respond(w, r, nil)
}

func (h handler) setPosition(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Position float64 `json:"position"`
	}
	if !decode(w, r, &data) {
		return
	}
	h.respond(w, r, h.ctl.Seek(data.Position))
}

func (h handler) setRepeat(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &data) {
		return
	}
	mode, ok := api.ParseRepeatMode(data.Mode)
	if !ok {
		WriteError(w, r, fmt.Errorf("invalid repeat mode %q", data.Mode), http.StatusBadRequest)
		return
	}
	h.ctl.SetRepeatMode(mode)
	h.respond(w, r, nil)
}

func (h handler) setShuffle(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Shuffle bool `json:"shuffle"`
	}
	if !decode(w, r, &data) {
		return
	}
	h.ctl.SetShuffle(data.Shuffle)
	h.respond(w, r, nil)
}

// respond writes the resulting status, or the error.
func (h handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		WriteError(w, r, err, statusCode(err))
		return
	}
	json.NewEncoder(w).Encode(h.ctl.Status())
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	return true
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, playerrors.ErrInvalidVolume), errors.Is(err, playlist.ErrIndexOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, playerrors.ErrEmptyQueue), errors.Is(err, playerrors.ErrNoActivePlayer):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON object.
func WriteError(w http.ResponseWriter, r *http.Request, err error, code int) {
	log.WithField("component", "server").Debugf("Error serving %s %s: %v", r.Method, r.URL.Path, err)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}
