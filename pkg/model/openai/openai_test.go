package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askdf/askdf/pkg/model"
)

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"emit(1)"}}]}`))
	}))
	defer srv.Close()

	b := New("sk-test", srv.URL, "gpt-4o-mini")
	got, err := b.Generate(context.Background(), "total sales?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "emit(1)" {
		t.Errorf("Generate = %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "total sales?" {
		t.Errorf("request messages = %+v", gotReq.Messages)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := New("sk-test", srv.URL, "")
	_, err := b.Generate(context.Background(), "hi")
	if !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestGenerateUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := New("sk-bad", srv.URL, "")
	_, err := b.Generate(context.Background(), "hi")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	b := New("sk-test", srv.URL, "")
	_, err := b.Generate(context.Background(), "hi")
	if !errors.Is(err, model.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}
