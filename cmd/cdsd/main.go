// Command cdsd is a demo HTTP transport for the sealed contact-discovery
// core: it is not part of the sealed region itself, but gives the
// packages under internal/ a runnable harness.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/privatecds/sealedcore/internal/lookup"
	"github.com/privatecds/sealedcore/internal/metrics"
	"github.com/privatecds/sealedcore/internal/server"
)

var (
	mu        sync.Mutex
	srv       *server.Server
	startArgs server.StartArgs
	directory lookup.Directory = lookup.LinearScanDirectory{}
)

func currentServer() *server.Server {
	mu.Lock()
	defer mu.Unlock()
	return srv
}

func resetServer() {
	mu.Lock()
	defer mu.Unlock()
	srv = server.Init(startArgs)
}

func handleCall(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	args, requestData, ratelimitData, err := decodeCallRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := newHTTPCaller()
	s := currentServer()
	if err := s.HandleCall(req.Context(), args, requestData, caller); err != nil {
		log.Printf("handle_call: %v", err)
	}

	select {
	case outcome := <-caller.replyCh:
		if outcome.err != nil {
			writeError(w, outcome.err)
			return
		}
		// Ratelimit-path replies are empty; the mutated ratelimit-state
		// slab is echoed back so the caller can persist it as an in/out
		// untrusted buffer.
		reply := append(append([]byte(nil), outcome.data...), ratelimitData...)
		writeResponse(reply, w)
	case <-req.Context().Done():
	}
}

func handleTerminate(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	stopArgs, err := decodeStopRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	s := currentServer()
	err = s.Terminate(req.Context(), stopArgs, directory)
	metrics.TerminateDuration.Observe(time.Since(start).Seconds())
	resetServer()

	if err != nil {
		writeError(w, err)
		return
	}
	writeResponse(nil, w)
}

func ping(w http.ResponseWriter, req *http.Request) {
	writeResponse(nil, w)
}

func setupTracing() func(context.Context) error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalln(err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func main() {
	addr := flag.String("addr", "0.0.0.0:10011", "HTTP listen address.")
	maxQueryPhones := flag.Int("max-query-phones", 8192, "Capacity of the query-phone accumulator per batch.")
	maxRatelimitStates := flag.Int("max-ratelimit-states", 1<<20, "Capacity hint for the process-wide ratelimit-state map; 0 disables rate limiting.")
	flag.Parse()

	startArgs = server.StartArgs{MaxQueryPhones: *maxQueryPhones, MaxRatelimitStates: *maxRatelimitStates}
	resetServer()

	shutdownTracing := setupTracing()
	defer shutdownTracing(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.Collectors()...)

	mux := http.NewServeMux()
	mux.HandleFunc("/call", handleCall)
	mux.HandleFunc("/terminate", handleTerminate)
	mux.HandleFunc("/ping", ping)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	ctx, cancel := context.WithCancel(context.Background())
	httpServer := http.Server{
		Addr:         *addr,
		WriteTimeout: 5 * time.Minute,
		ReadTimeout:  1 * time.Minute,
		Handler:      mux,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}
	log.Println("listening on", *addr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalln(err)
		}
	}()

	<-c
	log.Println("exiting...")

	go func() {
		<-c
		log.Fatalln("terminating...")
	}()

	gracefulCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(gracefulCtx); err != nil {
		log.Printf("shutdown error: %v\n", err)
		defer os.Exit(1)
	}
	cancel()
}
