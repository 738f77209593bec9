package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Inlionden/siteselection/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the crawled dataset over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "serve: init run store")
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(cfg.Output.CombinedPath(), st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes. The dataset is re-read per request so a
// crawl running in another process is visible without a restart.
func newRouter(combinedPath string, st store.Store) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/records", func(w http.ResponseWriter, req *http.Request) {
		records, err := loadRecords(combinedPath, req.URL.Query().Get("query"), queryLimit(req))
		if err != nil {
			if os.IsNotExist(eris.Cause(err)) {
				writeJSON(w, http.StatusOK, []apiRecord{})
				return
			}
			zap.L().Error("load records", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load dataset"})
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), queryLimit(req))
		if err != nil {
			zap.L().Error("list runs", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return r
}

const defaultAPILimit = 100

func queryLimit(req *http.Request) int {
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultAPILimit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiRecord is a dataset row as served over the API.
type apiRecord struct {
	Name      string `json:"name"`
	Rating    string `json:"rating"`
	Reviews   string `json:"reviews"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Query     string `json:"query"`
	DistanceM string `json:"distance_m"`
}

// loadRecords reads the combined dataset, optionally filtering on the search
// query column (case-insensitive substring match).
func loadRecords(path, query string, limit int) ([]apiRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "serve: open dataset %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "serve: read dataset %s", path)
	}
	if len(rows) < 2 {
		return []apiRecord{}, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	query = strings.ToLower(query)
	records := make([]apiRecord, 0, limit)
	for _, row := range rows[1:] {
		q := cell(row, "Search Query")
		if query != "" && !strings.Contains(strings.ToLower(q), query) {
			continue
		}
		records = append(records, apiRecord{
			Name:      cell(row, "Name"),
			Rating:    cell(row, "Rating"),
			Reviews:   cell(row, "Number of Reviews"),
			Latitude:  cell(row, "Latitude"),
			Longitude: cell(row, "Longitude"),
			Query:     q,
			DistanceM: cell(row, "Distance_m"),
		})
		if len(records) >= limit {
			break
		}
	}
	return records, nil
}
