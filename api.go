package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof" // register handlers
	"regexp"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (c *Core) api(ctx context.Context, listen string, mux *http.ServeMux, metrics []prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/gogc:percent|/gc/gomemlimit:bytes|/gc/heap/allocs:bytes|/gc/heap/allocs:objects|/gc/heap/goal:bytes|/memory/classes/heap/released:bytes|/memory/classes/heap/stacks:bytes|/memory/classes/total:bytes|/sched/gomaxprocs:threads|/sched/goroutines:goroutines|/sched/latencies:seconds)$`),
			},
		),
	))
	reg.MustRegister(metrics...)
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /api/status", c.apiStatus)
	mux.HandleFunc("GET /api/journal/{bot}", c.apiJournal)
	mux.HandleFunc("GET /api/tally/{bot}", c.apiTally)
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

func (c *Core) apiStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "status"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	type botStatus struct {
		Commands int      `json:"commands"`
		Prompts  int      `json:"prompts"`
		Clients  []string `json:"clients"`
	}
	u := struct {
		Bots   map[string]botStatus `json:"bots"`
		Status int                  `json:"status"`
	}{
		Bots:   make(map[string]botStatus, len(c.bots)),
		Status: http.StatusOK,
	}
	for id, b := range c.bots {
		s := botStatus{
			Commands: b.catalogue.Len(),
			Prompts:  b.prompts.Len(),
		}
		for t := range b.clients {
			s.Clients = append(s.Clients, string(t))
		}
		u.Bots[id] = s
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

type apiEntry struct {
	Client  string `json:"client"`
	Channel string `json:"channel"`
	Author  string `json:"author"`
	Command string `json:"command"`
	Args    string `json:"args,omitzero"`
	Time    string `json:"time"`
}

func (c *Core) apiJournal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "journal"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	bot := r.PathValue("bot")
	if _, ok := c.bots[bot]; !ok {
		log.WarnContext(ctx, "no such bot", slog.String("bot", bot))
		jsonerror(w, http.StatusNotFound, "no such bot")
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if s := r.FormValue("since"); s != "" {
		var err error
		since, err = time.Parse(time.RFC3339, s)
		if err != nil {
			log.WarnContext(ctx, "bad request", slog.String("since", s), slog.Any("err", err))
			jsonerror(w, http.StatusBadRequest, "invalid since time")
			return
		}
	}
	es, err := c.journal.Since(ctx, bot, since)
	if err != nil {
		log.ErrorContext(ctx, "couldn't read journal", slog.Any("err", err))
		jsonerror(w, http.StatusInternalServerError, err.Error())
		return
	}
	u := struct {
		Data   []apiEntry `json:"data"`
		Status int        `json:"status"`
	}{
		Data:   make([]apiEntry, len(es)),
		Status: http.StatusOK,
	}
	for i, e := range es {
		u.Data[i] = apiEntry{
			Client:  e.Client,
			Channel: e.Channel,
			Author:  e.Author,
			Command: e.Command,
			Args:    e.Args,
			Time:    e.Time.Format(time.RFC3339),
		}
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

func (c *Core) apiTally(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "tally"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	bot := r.PathValue("bot")
	if _, ok := c.bots[bot]; !ok {
		log.WarnContext(ctx, "no such bot", slog.String("bot", bot))
		jsonerror(w, http.StatusNotFound, "no such bot")
		return
	}
	tally, err := c.journal.Tally(ctx, bot)
	if err != nil {
		log.ErrorContext(ctx, "couldn't tally journal", slog.Any("err", err))
		jsonerror(w, http.StatusInternalServerError, err.Error())
		return
	}
	u := struct {
		Data   map[string]int64 `json:"data"`
		Status int              `json:"status"`
	}{
		Data:   tally,
		Status: http.StatusOK,
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}
