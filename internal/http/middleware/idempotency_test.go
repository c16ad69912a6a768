package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	clientID, scope, key string
}

func recordingLookup(exists bool, err error, calls *[]lookupCall) IdempotencyLookup {
	return func(_ context.Context, clientID, scope, key string, _ time.Time) (bool, error) {
		*calls = append(*calls, lookupCall{clientID, scope, key})
		return exists, err
	}
}

type idemState struct {
	key            string
	hasKey         bool
	replay, bypass bool
}

func idemEngine(opts IdempotencyOptions, lookup IdempotencyLookup, seen *idemState) *gin.Engine {
	r := newTestEngine(RequestID(), IdempotencyValidator(opts, lookup))
	r.POST("/products", func(c *gin.Context) {
		seen.key, seen.hasKey = GetIdempotencyKey(c)
		seen.replay, seen.bypass = IsReplay(c), IsRateBypass(c)
		c.Status(http.StatusCreated)
	})
	return r
}

func TestIdempotencyValidator_NoHeader(t *testing.T) {
	var calls []lookupCall
	var seen idemState
	r := idemEngine(IdempotencyOptions{}, recordingLookup(true, nil, &calls), &seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/products", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if len(calls) != 0 {
		t.Fatalf("lookup called without header: %v", calls)
	}
	if seen.hasKey || seen.replay {
		t.Fatal("nothing should be stashed")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	var seen idemState
	r := idemEngine(IdempotencyOptions{MaxLen: 8, Pattern: regexp.MustCompile(`^[a-z]+$`)}, nil, &seen)

	for _, key := range []string{"toolongforit", "UPPER"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/products", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid Idempotency-Key") {
			t.Fatalf("key %q: status=%d body=%s", key, w.Code, w.Body.String())
		}
	}
}

func TestIdempotencyValidator_MissAndHit(t *testing.T) {
	var calls []lookupCall
	var seen idemState
	opts := IdempotencyOptions{Scope: "POST /products"}

	r := idemEngine(opts, recordingLookup(false, nil, &calls), &seen)
	req := httptest.NewRequest(http.MethodPost, "/products", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	req.RemoteAddr = "198.51.100.4:999"
	r.ServeHTTP(httptest.NewRecorder(), req)

	if !seen.hasKey || seen.key != "k-1" {
		t.Fatalf("key = %q, %v", seen.key, seen.hasKey)
	}
	if seen.replay || seen.bypass {
		t.Fatal("miss must not mark a replay")
	}
	want := lookupCall{"ip:198.51.100.4", "POST /products", "k-1"}
	if len(calls) != 1 || calls[0] != want {
		t.Fatalf("calls = %v; want [%v]", calls, want)
	}

	r = idemEngine(opts, recordingLookup(true, nil, &calls), &seen)
	req = httptest.NewRequest(http.MethodPost, "/products", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	req.Header.Set(HeaderAPIKey, "15940")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if !seen.replay || !seen.bypass {
		t.Fatal("hit must mark replay and bypass")
	}
	if got := calls[len(calls)-1].clientID; got != fingerprint("15940") {
		t.Fatalf("client id = %q; want key fingerprint", got)
	}
}

func TestIdempotencyValidator_LookupErrorIsNotFatal(t *testing.T) {
	captureLogger(t)
	var calls []lookupCall
	var seen idemState
	r := idemEngine(IdempotencyOptions{}, recordingLookup(false, errors.New("db down"), &calls), &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/products", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated || seen.replay {
		t.Fatalf("status=%d replay=%v", w.Code, seen.replay)
	}
}

func TestIdempotencyValidator_IgnoresOtherMethods(t *testing.T) {
	var calls []lookupCall
	r := newTestEngine(IdempotencyValidator(IdempotencyOptions{}, recordingLookup(true, nil, &calls)))
	r.PUT("/products/:id", func(c *gin.Context) {
		if IsReplay(c) {
			t.Error("PUT must not be marked as replay")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/products/1", nil)
	req.Header.Set(HeaderIdempotencyKey, "bad key!")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(calls) != 0 {
		t.Fatalf("status=%d calls=%v", w.Code, calls)
	}
}
