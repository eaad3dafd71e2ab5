package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "3000"
	defaultLatencyMs = "20"
	didMethod        = "did:attesto:"
)

// UserInfo is the directory's view of one user.
type UserInfo struct {
	DID      string `json:"did"`
	UserType string `json:"user_type"`
}

type UserResponse struct {
	Data struct {
		UserInfo UserInfo `json:"user_info"`
	} `json:"data"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/user/", handleUser)

	log.Printf("🪪  Mock identity directory starting on port %s", port)
	log.Printf("⏱️  Simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "identity-directory",
	})
}

// Tokens encode the user they belong to, so local runs need no seeding:
//
//	employer-<name>   -> did:attesto:employer:<name>, EMPLOYER
//	employee-<key>    -> did:attesto:employee:<key>, EMPLOYEE (key is the holder's hex X25519 public key)
//	other-<name>      -> did:attesto:other:<name>, OTHER
//	unavailable       -> 503 on every lookup
func userForToken(token string) (UserInfo, bool) {
	kind, name, ok := strings.Cut(token, "-")
	if !ok || name == "" {
		return UserInfo{}, false
	}
	return userForDID(didMethod + kind + ":" + name)
}

// userForDID maps a DID back to its user. did:attesto:missing:* never resolves.
func userForDID(did string) (UserInfo, bool) {
	rest, ok := strings.CutPrefix(did, didMethod)
	if !ok {
		return UserInfo{}, false
	}
	kind, _, ok := strings.Cut(rest, ":")
	if !ok {
		return UserInfo{}, false
	}
	switch kind {
	case "employer":
		return UserInfo{DID: did, UserType: "EMPLOYER"}, true
	case "employee":
		return UserInfo{DID: did, UserType: "EMPLOYEE"}, true
	case "other":
		return UserInfo{DID: did, UserType: "OTHER"}, true
	default:
		return UserInfo{}, false
	}
}

func handleUser(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		sendError(w, "Missing bearer token", http.StatusUnauthorized)
		return
	}
	if token == "unavailable" {
		sendError(w, "Directory temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	caller, ok := userForToken(token)
	if !ok {
		sendError(w, "Invalid access token", http.StatusUnauthorized)
		return
	}

	target := strings.TrimPrefix(r.URL.Path, "/user/")
	user := caller
	if target != "self" {
		user, ok = userForDID(target)
		if !ok {
			sendError(w, "User not found", http.StatusNotFound)
			log.Printf("🔍 Unknown DID: %s", target)
			return
		}
	}

	var resp UserResponse
	resp.Data.UserInfo = user
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	n, err := strconv.Atoi(value)
	if err != nil {
		n, _ = strconv.Atoi(defaultValue)
	}
	return n
}
