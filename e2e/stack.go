package e2e

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attesto/internal/audit"
	auditmetrics "attesto/internal/audit/metrics"
	claimsHandler "attesto/internal/claims/handler"
	claimsmetrics "attesto/internal/claims/metrics"
	"attesto/internal/claims/service"
	"attesto/internal/claims/store"
	"attesto/internal/credential/sealer"
	"attesto/internal/credential/signer"
	"attesto/internal/idempotency"
	"attesto/internal/identity"
	"attesto/internal/platform/health"
	httptransport "attesto/internal/transport/http"
	"attesto/pkg/platform/circuit"
	"attesto/pkg/platform/middleware/request"
	outboxmem "attesto/pkg/platform/outbox/store/memory"
)

// Directory is a stand-in identity directory. It answers the same two lookups as
// the real one, keyed by access token and by DID.
type Directory struct {
	mu      sync.RWMutex
	byToken map[string]directoryUser
	byDID   map[string]directoryUser
}

type directoryUser struct {
	DID      string `json:"did"`
	UserType string `json:"user_type"`
}

func NewDirectory() *Directory {
	return &Directory{
		byToken: make(map[string]directoryUser),
		byDID:   make(map[string]directoryUser),
	}
}

func (d *Directory) Register(token, did, userType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := directoryUser{DID: did, UserType: userType}
	d.byToken[token] = u
	d.byDID[did] = u
}

func (d *Directory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	d.mu.RLock()
	_, known := d.byToken[token]
	d.mu.RUnlock()
	if !ok || !known {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	d.mu.RLock()
	var (
		user  directoryUser
		found bool
	)
	if r.URL.Path == "/user/self" {
		user, found = d.byToken[token]
	} else if did, ok := strings.CutPrefix(r.URL.Path, "/user/"); ok {
		user, found = d.byDID[did]
	}
	d.mu.RUnlock()
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{"user_info": user},
	})
}

// Stack is a complete attesto server backed by in-memory stores.
type Stack struct {
	Server    *httptest.Server
	Directory *Directory
	Audit     *audit.Publisher

	directory *httptest.Server
}

func StartStack() (*Stack, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	dir := NewDirectory()
	dirServer := httptest.NewServer(dir)

	auditor := audit.NewPublisher(audit.NewInMemoryStore(),
		audit.WithPublisherLogger(logger),
		audit.WithPublisherMetrics(auditmetrics.NewWith(reg)),
	)
	directoryClient := identity.NewClient(dirServer.URL, 2*time.Second,
		identity.WithLogger(logger),
		identity.WithBreaker(circuit.New("identity-directory")),
	)
	svc, err := service.New(
		store.NewInMemoryStore(store.WithOutbox(outboxmem.New())),
		directoryClient,
		signer.New(),
		sealer.New(),
		service.WithLogger(logger),
		service.WithAuditor(auditor),
		service.WithMetrics(claimsmetrics.NewWith(reg)),
	)
	if err != nil {
		dirServer.Close()
		return nil, err
	}

	router := httptransport.NewRouter(httptransport.Routes{
		Claims:  claimsHandler.New(svc, idempotency.NewInMemory(time.Hour), logger),
		Health:  health.New("e2e"),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Latency: request.NewMetricsWith(reg),
	}, logger)

	return &Stack{
		Server:    httptest.NewServer(router),
		Directory: dir,
		Audit:     auditor,
		directory: dirServer,
	}, nil
}

func (s *Stack) Close() {
	s.Server.Close()
	s.directory.Close()
	s.Audit.Close()
}
