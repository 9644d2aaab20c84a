package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/telemetry"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only workflow status API and Prometheus metrics",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	store, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := telemetry.NewMetrics("zen")

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{AllowedMethods: []string{http.MethodGet}}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/workflows", listWorkflowsHandler(store))
	r.Get("/workflows/{id}", getWorkflowHandler(store))

	appLog.Info("serving workflow status API", "addr", serveAddr)
	server := &http.Server{Addr: serveAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	return server.ListenAndServe()
}

func listWorkflowsHandler(store interface {
	ListWorkflows(ctx context.Context) ([]*core.Workflow, error)
}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		workflows, err := store.ListWorkflows(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, workflows)
	}
}

func getWorkflowHandler(store interface {
	LoadWorkflow(ctx context.Context, id core.WorkflowID) (*core.Workflow, error)
}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := core.WorkflowID(chi.URLParam(req, "id"))
		wf, err := store.LoadWorkflow(req.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, wf)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintln(w, err)
	}
}
