package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Stand-in for the payment gateway during local development. Bills start in
// WAITING and can be flipped to a terminal status via POST /bills/{id}/pay or
// /bills/{id}/expire. The -shape flag selects which of the gateway's historic
// response shapes to emit, and -flaky injects random 500s so client retry
// paths can be exercised.

type bill struct {
	ID     string `json:"billId"`
	PayURL string `json:"payUrl"`
	Status string `json:"status"`
}

type server struct {
	mu     sync.Mutex
	bills  map[string]*bill
	shape  string
	flaky  float64
	apiKey string
}

func main() {
	var (
		port   = flag.String("port", "9099", "port to listen on")
		shape  = flag.String("shape", "flat", "status response shape: flat, nested, or alternate")
		flaky  = flag.Float64("flaky", 0, "probability of answering 500 to a status check")
		apiKey = flag.String("api-key", "", "require this X-API-Key header when set")
	)
	flag.Parse()

	if *shape != "flat" && *shape != "nested" && *shape != "alternate" {
		log.Fatalf("unknown shape %q", *shape)
	}

	s := &server{
		bills:  make(map[string]*bill),
		shape:  *shape,
		flaky:  *flaky,
		apiKey: *apiKey,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bills", s.handleBills)
	mux.HandleFunc("/bills/", s.handleBill)
	mux.HandleFunc("/invoices/", s.handleInvoice)

	addr := ":" + *port
	log.Printf("mock gateway listening on %s (shape=%s flaky=%.2f)", addr, *shape, *flaky)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func (s *server) authorized(r *http.Request) bool {
	return s.apiKey == "" || r.Header.Get("X-API-Key") == s.apiKey
}

func (s *server) handleBills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	b := &bill{
		ID:     uuid.NewString(),
		Status: "WAITING",
	}
	b.PayURL = "https://pay.example/" + b.ID

	s.mu.Lock()
	s.bills[b.ID] = b
	s.mu.Unlock()

	log.Printf("created bill %s for amount %d", b.ID, body.Amount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(b)
}

// handleBill serves GET /bills/{id} plus the pay/expire toggles.
func (s *server) handleBill(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/bills/")
	parts := strings.Split(rest, "/")

	s.mu.Lock()
	b, ok := s.bills[parts[0]]
	s.mu.Unlock()
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		s.mu.Lock()
		switch parts[1] {
		case "pay":
			b.Status = "PAID"
		case "expire":
			b.Status = "EXPIRED"
		default:
			s.mu.Unlock()
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		s.mu.Unlock()
		log.Printf("bill %s -> %s", b.ID, b.Status)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	if s.shape == "alternate" {
		// This gateway generation only answers on /invoices.
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	s.writeStatus(w, b)
}

// handleInvoice serves the legacy GET /invoices/{id}/status endpoint.
func (s *server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if s.shape != "alternate" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/invoices/")
	id := strings.TrimSuffix(rest, "/status")

	s.mu.Lock()
	b, ok := s.bills[id]
	s.mu.Unlock()
	if !ok || r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	s.writeStatus(w, b)
}

func (s *server) writeStatus(w http.ResponseWriter, b *bill) {
	if s.flaky > 0 && rand.Float64() < s.flaky {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	status := b.Status
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	var payload any
	if s.shape == "flat" {
		payload = map[string]string{"status": status}
	} else {
		payload = map[string]map[string]string{"status": {"value": status}}
	}
	_ = json.NewEncoder(w).Encode(payload)
}
