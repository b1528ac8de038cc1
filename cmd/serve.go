package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sync/gridsearch"
	"github.com/RyanBlaney/sonido-sync/logging"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}

var serveCmd = &cobra.Command{
	Use:   "serve <results.csv>",
	Short: "Serves grid search results as JSON",
	Long:  `Serves a results file over HTTP: GET /results and GET /dimensions/{name}.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := readReport(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()
		return serve(ctx, serveAddr, rows)
	},
}

func serve(ctx context.Context, addr string, rows []gridsearch.Row) error {
	logger := logging.WithFields(logging.Fields{"component": "server", "addr": addr})

	server := &http.Server{
		Addr:              addr,
		Handler:           cors.Default().Handler(newRouter(rows)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("serving results", logging.Fields{"rows": len(rows)})
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type resultsHandler struct {
	rows []gridsearch.Row
}

func newRouter(rows []gridsearch.Row) *mux.Router {
	h := &resultsHandler{rows: rows}
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/results", h.handleResults).Methods(http.MethodGet)
	router.HandleFunc("/dimensions/{name}", h.handleDimension).Methods(http.MethodGet)
	return router
}

// handleResults lists rows, optionally filtered by ?odf= and ?window=.
func (h *resultsHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	odf := r.URL.Query().Get("odf")
	window := r.URL.Query().Get("window")

	res := make([]gridsearch.Row, 0, len(h.rows))
	for _, row := range h.rows {
		if odf != "" && row.Tuple.ODF.String() != odf {
			continue
		}
		if window != "" && row.Tuple.Window.String() != window {
			continue
		}
		res = append(res, row)
	}
	writeJSON(w, res)
}

func (h *resultsHandler) handleDimension(w http.ResponseWriter, r *http.Request) {
	dim, err := gridsearch.ParseDimension(mux.Vars(r)["name"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	summaries, err := gridsearch.SummarizeDimension(h.rows, dim)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(err, "Failed to encode response")
	}
}
