package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/jobs"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the asset enrichment API server",
	Long:  "Serves the asset CRUD and enrichment endpoints. Enrichment runs dispatch to Temporal when configured, otherwise to the in-process queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		dispatcher, err := jobs.NewDispatcher(ctx, cfg.Temporal)
		if err != nil {
			return err
		}
		if dispatcher != nil {
			defer dispatcher.Close()
			zap.L().Info("dispatching enrichment via temporal", zap.String("task_queue", cfg.Temporal.TaskQueue))
		}

		api := &apiServer{store: env.Store, queue: env.Queue, dispatcher: dispatcher}
		r := buildRouter(api)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type apiServer struct {
	store      store.Store
	queue      *enrich.Queue
	dispatcher *jobs.Dispatcher
}

func buildRouter(api *apiServer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/assets", func(r chi.Router) {
		r.Post("/", api.createAsset)
		r.Get("/", api.listAssets)
		r.Get("/{id}", api.getAsset)
		r.Get("/{id}/records", api.listRecords)
		r.Post("/{id}/sync", api.syncAsset)
		r.Delete("/{id}", api.deleteAsset)
	})
	return r
}

func (s *apiServer) createAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope model.Scope `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := s.store.CreateAsset(r.Context(), req.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.dispatch(r.Context(), asset.ID)
	if err != nil {
		zap.L().Error("enrichment dispatch failed", zap.String("asset_id", asset.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "enrichment dispatch failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"asset_id": asset.ID,
		"job_id":   jobID,
		"status":   string(asset.Status),
	})
}

func (s *apiServer) syncAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")
	if _, err := s.store.GetAsset(r.Context(), assetID); err != nil {
		writeNotFoundOr500(w, err)
		return
	}

	jobID, err := s.dispatch(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, enrich.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "enrichment already running")
			return
		}
		zap.L().Error("re-sync dispatch failed", zap.String("asset_id", assetID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "enrichment dispatch failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"asset_id": assetID, "job_id": jobID})
}

// dispatch routes an enrichment request to Temporal or the local queue.
func (s *apiServer) dispatch(ctx context.Context, assetID string) (string, error) {
	if s.dispatcher != nil {
		return s.dispatcher.Start(ctx, assetID)
	}
	job, _, err := s.queue.Enqueue(assetID)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (s *apiServer) getAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.store.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeNotFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *apiServer) listAssets(w http.ResponseWriter, r *http.Request) {
	filter := store.AssetFilter{
		Status: model.AssetStatus(r.URL.Query().Get("status")),
		City:   r.URL.Query().Get("city"),
	}
	assets, err := s.store.ListAssets(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list assets failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (s *apiServer) listRecords(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")
	if _, err := s.store.GetAsset(r.Context(), assetID); err != nil {
		writeNotFoundOr500(w, err)
		return
	}
	records, err := s.store.RecordsFor(r.Context(), assetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list records failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *apiServer) deleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeNotFoundOr500(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeNotFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
